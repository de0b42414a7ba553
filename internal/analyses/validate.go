package analyses

import (
	"strings"
	"unicode/utf8"

	"docsec-backend/internal/shared/apperror"
)

// MinContentChars is the shortest document worth sending to a provider.
const MinContentChars = 50

// ValidateContent rejects empty or too-short content. The rules do not depend on
// the provider or analysis type.
func ValidateContent(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return apperror.Newf(apperror.EmptyContent, "validate", "document has no text")
	}
	if n := utf8.RuneCountInString(trimmed); n < MinContentChars {
		return apperror.Newf(apperror.TooShort, "validate", "document has %d characters, at least %d are required", n, MinContentChars)
	}
	return nil
}
