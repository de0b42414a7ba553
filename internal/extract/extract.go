package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"docsec-backend/internal/shared/apperror"
	"docsec-backend/internal/shared/storage/object"
)

const (
	MimePDF      = "application/pdf"
	MimeDOC      = "application/msword"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePlain    = "text/plain"
	MimeMarkdown = "text/markdown"
)

// RawDocument is an uploaded payload before extraction.
type RawDocument struct {
	Data      []byte
	MimeType  string
	FileName  string
	SizeBytes int64
}

// ExtractedText is normalized, non-empty UTF-8 text recovered from a document.
type ExtractedText struct {
	Text           string `json:"text"`
	SourceMimeType string `json:"sourceMimeType"`
	CharacterCount int    `json:"characterCount"`
}

type decoder func(data []byte) (string, error)

var decoders = map[string]decoder{
	MimePDF:      extractPDF,
	MimeDOC:      extractDOC,
	MimeDOCX:     extractDOCX,
	MimePlain:    decodePlain,
	MimeMarkdown: decodePlain,
}

// SupportedMimeTypes lists the declared types Extract accepts.
func SupportedMimeTypes() []string {
	return []string{MimePDF, MimeDOC, MimeDOCX, MimePlain, MimeMarkdown}
}

// IsSupported reports whether the declared mime type has a decoder.
func IsSupported(mimeType string) bool {
	_, ok := decoders[NormalizeMimeType(mimeType)]
	return ok
}

// Extract decodes doc according to its declared mime type and normalizes the result.
// Libraries used: github.com/ledongthuc/pdf (PDF), github.com/nguyenthenguyen/docx (DOCX)
// and github.com/richardlehane/mscfb (legacy DOC).
func Extract(ctx context.Context, doc RawDocument) (ExtractedText, error) {
	if err := ctx.Err(); err != nil {
		return ExtractedText{}, err
	}
	mimeType := NormalizeMimeType(doc.MimeType)
	decode, ok := decoders[mimeType]
	if !ok {
		return ExtractedText{}, apperror.Newf(apperror.UnsupportedFormat, "extract", "unsupported mime type: %q", mimeType)
	}

	raw, err := decode(doc.Data)
	if err != nil {
		return ExtractedText{}, apperror.New(apperror.ExtractionFailure, "extract."+shortName(mimeType), err)
	}

	text := Normalize(raw)
	if text == "" {
		return ExtractedText{}, apperror.Newf(apperror.EmptyContent, "extract."+shortName(mimeType), "no text recovered from %q", doc.FileName)
	}
	return ExtractedText{
		Text:           text,
		SourceMimeType: mimeType,
		CharacterCount: utf8.RuneCountInString(text),
	}, nil
}

// ExtractFromStore reads a stored object, extracts it and persists a derived
// .extracted.txt copy next to the original.
func ExtractFromStore(ctx context.Context, store object.ObjectStore, fileKey, mimeType, fileName string) (ExtractedText, error) {
	if err := ctx.Err(); err != nil {
		return ExtractedText{}, err
	}

	body, err := store.Open(ctx, fileKey)
	if err != nil {
		return ExtractedText{}, fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return ExtractedText{}, fmt.Errorf("extract text key=%s mime=%s: read: %w", fileKey, mimeType, err)
	}

	out, err := Extract(ctx, RawDocument{Data: data, MimeType: mimeType, FileName: fileName, SizeBytes: int64(len(data))})
	if err != nil {
		return ExtractedText{}, fmt.Errorf("extract text key=%s: %w", fileKey, err)
	}

	if _, err := SaveExtracted(ctx, store, fileKey, out.Text); err != nil {
		return ExtractedText{}, fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}
	return out, nil
}

// ExtractedKey is the storage key of the derived text copy for fileKey.
func ExtractedKey(fileKey string) string {
	return fileKey + ".extracted.txt"
}

// SaveExtracted writes text under ExtractedKey(fileKey) and returns that key.
func SaveExtracted(ctx context.Context, store object.ObjectStore, fileKey, text string) (string, error) {
	saver, ok := store.(object.KeySaver)
	if !ok {
		return "", errors.New("object store does not support SaveWithKey")
	}
	key := ExtractedKey(fileKey)
	if _, err := saver.SaveWithKey(ctx, key, "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		return "", err
	}
	return key, nil
}

// NormalizeMimeType strips parameters and lowercases a declared content type.
func NormalizeMimeType(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
}

func decodePlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return string(bytes.ToValidUTF8(data, []byte("�"))), nil
	}
	return string(data), nil
}

func shortName(mimeType string) string {
	switch mimeType {
	case MimePDF:
		return "pdf"
	case MimeDOC:
		return "doc"
	case MimeDOCX:
		return "docx"
	case MimeMarkdown:
		return "markdown"
	default:
		return "plain"
	}
}
