package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"docsec-backend/internal/extract"
	"docsec-backend/internal/shared/apperror"
	"docsec-backend/internal/shared/metrics"
	"docsec-backend/internal/shared/storage/object"
	"docsec-backend/internal/shared/telemetry"
)

// MaxUploadBytes is the largest document accepted.
const MaxUploadBytes = 50 << 20

const discardTimeout = 10 * time.Second

var extensionMimeTypes = map[string]string{
	".pdf":      extract.MimePDF,
	".doc":      extract.MimeDOC,
	".docx":     extract.MimeDOCX,
	".txt":      extract.MimePlain,
	".text":     extract.MimePlain,
	".md":       extract.MimeMarkdown,
	".markdown": extract.MimeMarkdown,
}

// Service contains business logic for documents.
type Service struct {
	Store           object.ObjectStore
	Repo            DocumentsRepo
	StorageProvider string
}

// ResolveMimeType prefers the declared type and falls back to the file extension
// when the declaration is missing or generic.
func ResolveMimeType(declared, fileName string) string {
	mt := extract.NormalizeMimeType(declared)
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}
	return extensionMimeTypes[strings.ToLower(filepath.Ext(fileName))]
}

// Upload stores the raw bytes, extracts their text and records the document.
// Nothing is recorded when extraction fails.
func (s *Service) Upload(ctx context.Context, userID, fileName, declaredMime string, r io.Reader) (Document, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" || userID == "" {
		return Document{}, ErrInvalidInput
	}
	mimeType := ResolveMimeType(declaredMime, fileName)
	if !extract.IsSupported(mimeType) {
		metrics.IncExtraction(mimeType, string(apperror.UnsupportedFormat))
		return Document{}, apperror.Newf(apperror.UnsupportedFormat, "documents.upload", "unsupported document type %q", mimeType)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return Document{}, ErrTooLarge
	}

	text, err := extract.Extract(ctx, extract.RawDocument{
		Data:      data,
		MimeType:  mimeType,
		FileName:  fileName,
		SizeBytes: int64(len(data)),
	})
	if err != nil {
		kind, ok := apperror.KindOf(err)
		if !ok {
			kind = apperror.ExtractionFailure
		}
		metrics.IncExtraction(mimeType, string(kind))
		telemetry.Warn("document.extract_failed", map[string]any{
			"user_id":    userID,
			"mime_type":  mimeType,
			"error_kind": string(kind),
			"err":        err,
		})
		return Document{}, err
	}
	metrics.IncExtraction(mimeType, "ok")

	storageKey, size, detected, err := s.Store.Save(ctx, userID, fileName, bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("store upload: %w", err)
	}
	extractedKey, err := extract.SaveExtracted(ctx, s.Store, storageKey, text.Text)
	if err != nil {
		s.discard(storageKey)
		return Document{}, fmt.Errorf("store extracted text: %w", err)
	}

	now := time.Now().UTC()
	doc := Document{
		ID:               uuid.NewString(),
		UserID:           userID,
		FileName:         fileName,
		MimeType:         mimeType,
		DetectedMimeType: detected,
		SizeBytes:        size,
		StorageProvider:  s.StorageProvider,
		StorageKey:       storageKey,
		ExtractedTextKey: extractedKey,
		CharacterCount:   text.CharacterCount,
		ExtractedAt:      &now,
		CreatedAt:        now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		s.discard(storageKey, extractedKey)
		return Document{}, err
	}

	telemetry.Info("document.uploaded", map[string]any{
		"user_id":       userID,
		"document_id":   doc.ID,
		"mime_type":     mimeType,
		"detected_mime": detected,
		"size_bytes":    size,
		"chars":         text.CharacterCount,
	})
	return doc, nil
}

// discard removes objects written for an upload that was not recorded. It runs
// on a fresh context so a cancelled request still cleans up.
func (s *Service) discard(keys ...string) {
	deleter, ok := s.Store.(object.Deleter)
	if !ok {
		telemetry.Warn("document.orphaned_objects", map[string]any{"keys": keys, "reason": "store cannot delete"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), discardTimeout)
	defer cancel()
	for _, key := range keys {
		if err := deleter.Delete(ctx, key); err != nil {
			telemetry.Warn("document.orphaned_objects", map[string]any{"keys": []string{key}, "err": err})
		}
	}
}

// Get returns a document owned by userID.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	if userID == "" || documentID == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userID, documentID)
}

// List returns documents for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// LoadText returns the extracted text of a document. Documents stored without a
// text copy are extracted again from the original bytes and the copy is recorded.
func (s *Service) LoadText(ctx context.Context, userID, documentID string) (extract.ExtractedText, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return extract.ExtractedText{}, err
	}

	if doc.ExtractedTextKey != "" {
		text, err := s.readExtracted(ctx, doc)
		if err == nil {
			return text, nil
		}
		telemetry.Warn("document.extracted_read_failed", map[string]any{
			"document_id": doc.ID,
			"key":         doc.ExtractedTextKey,
			"err":         err,
		})
	}

	text, err := extract.ExtractFromStore(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName)
	if err != nil {
		return extract.ExtractedText{}, err
	}
	if err := s.Repo.UpdateExtraction(ctx, userID, doc.ID, extract.ExtractedKey(doc.StorageKey), text.CharacterCount, time.Now().UTC()); err != nil && !errors.Is(err, ErrNotFound) {
		return extract.ExtractedText{}, err
	}
	return text, nil
}

func (s *Service) readExtracted(ctx context.Context, doc Document) (extract.ExtractedText, error) {
	body, err := s.Store.Open(ctx, doc.ExtractedTextKey)
	if err != nil {
		return extract.ExtractedText{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return extract.ExtractedText{}, err
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return extract.ExtractedText{}, errors.New("extracted text copy is empty")
	}
	return extract.ExtractedText{
		Text:           text,
		SourceMimeType: doc.MimeType,
		CharacterCount: utf8.RuneCountInString(text),
	}, nil
}
