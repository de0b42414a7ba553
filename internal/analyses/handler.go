package analyses

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"docsec-backend/internal/documents"
	"docsec-backend/internal/extract"
	"docsec-backend/internal/llm"
	"docsec-backend/internal/shared/server/middleware"
	"docsec-backend/internal/shared/server/respond"
)

// DocumentSource loads the extracted text of a document owned by userID.
// Unknown or foreign documents yield documents.ErrNotFound.
type DocumentSource interface {
	LoadText(ctx context.Context, userID, documentID string) (extract.ExtractedText, error)
}

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc  *Service
	Docs DocumentSource
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, docs DocumentSource) *Handler {
	return &Handler{Svc: svc, Docs: docs}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/:id/analyze", h.analyze)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/providers", h.providers)
}

type analyzeRequest struct {
	Provider     string `json:"provider"`
	AnalysisType string `json:"analysisType"`
	CustomPrompt string `json:"customPrompt"`
}

func (h *Handler) analyze(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := strings.TrimSpace(c.Param("id"))
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}
	c.Set("documentId", documentID)

	var body analyzeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}
	if utf8.RuneCountInString(body.CustomPrompt) > MaxCustomPromptLength {
		respond.Error(c, http.StatusBadRequest, "validation_error", "customPrompt must be at most 1000 characters", []map[string]string{
			{"field": "customPrompt", "issue": "too_long"},
		})
		return
	}

	provider := h.Svc.DefaultProvider
	if raw := strings.TrimSpace(body.Provider); raw != "" {
		p, err := llm.ParseProvider(raw)
		if err != nil {
			respond.Classified(c, err, "failed to analyze document")
			return
		}
		provider = p
	}
	c.Set("provider", string(provider))

	analysisType := strings.ToLower(strings.TrimSpace(body.AnalysisType))
	if !llm.IsAnalysisType(analysisType) {
		analysisType = llm.AnalysisGeneral
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	content, err := h.Docs.LoadText(ctx, userID, documentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Classified(c, err, "failed to load document text")
		return
	}

	req := Request{
		Content:      content,
		Provider:     provider,
		AnalysisType: analysisType,
		CustomPrompt: body.CustomPrompt,
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		analysis, err := h.Svc.Start(ctx, userID, documentID, req)
		if err != nil {
			respond.Classified(c, err, "failed to start analysis")
			return
		}
		c.Set("analysisId", analysis.ID)
		respond.JSON(c, http.StatusAccepted, gin.H{
			"analysisId": analysis.ID,
			"status":     analysis.Status,
		})
		return
	}

	result, err := h.Svc.Run(ctx, req)
	if err != nil {
		respond.Classified(c, err, "failed to analyze document")
		return
	}
	respond.JSON(c, http.StatusOK, result)
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}
	c.Set("analysisId", analysisID)

	analysis, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, analysis)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := documents.DefaultListLimit
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	limit = documents.PageLimit(limit)
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(items))
	for _, a := range items {
		item := gin.H{
			"analysisId":   a.ID,
			"documentId":   a.DocumentID,
			"provider":     a.Provider,
			"analysisType": a.AnalysisType,
			"status":       a.Status,
			"createdAt":    a.CreatedAt,
		}
		if a.Status == StatusCompleted && a.Result != nil {
			item["summary"] = a.Result.Structured.Summary
		}
		if a.Status == StatusFailed {
			item["errorKind"] = a.ErrorKind
			item["retryable"] = a.Retryable
		}
		resp = append(resp, item)
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) providers(c *gin.Context) {
	respond.JSON(c, http.StatusOK, gin.H{
		"default":   h.Svc.DefaultProvider,
		"providers": h.Svc.Providers(),
	})
}
