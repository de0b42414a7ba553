package respond

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"

	"docsec-backend/internal/shared/apperror"
)

// Classified answers with the status mapped from err's kind. Unclassified errors
// become a 500 with fallbackMessage and no internal detail.
func Classified(c *gin.Context, err error, fallbackMessage string) {
	kind, ok := apperror.KindOf(err)
	if !ok {
		Error(c, http.StatusInternalServerError, "internal_error", fallbackMessage, nil)
		return
	}

	details := gin.H{"kind": string(kind), "retryable": kind.Retryable()}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		if appErr.Provider != "" {
			details["provider"] = appErr.Provider
		}
		if appErr.Elapsed > 0 {
			details["processingTimeMs"] = appErr.Elapsed.Milliseconds()
		}
	}
	Error(c, kind.HTTPStatus(), snakeCase(string(kind)), err.Error(), details)
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
