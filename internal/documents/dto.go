package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID       string     `json:"documentId"`
	FileName         string     `json:"fileName"`
	MimeType         string     `json:"mimeType"`
	DetectedMimeType string     `json:"detectedMimeType,omitempty"`
	SizeBytes        int64      `json:"sizeBytes"`
	CharacterCount   int        `json:"characterCount"`
	ExtractedAt      *time.Time `json:"extractedAt,omitempty"`
	UploadedAt       time.Time  `json:"uploadedAt"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:       doc.ID,
		FileName:         doc.FileName,
		MimeType:         doc.MimeType,
		DetectedMimeType: doc.DetectedMimeType,
		SizeBytes:        doc.SizeBytes,
		CharacterCount:   doc.CharacterCount,
		ExtractedAt:      doc.ExtractedAt,
		UploadedAt:       doc.CreatedAt,
	}
}
