package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"docsec-backend/internal/llm"
	"docsec-backend/internal/shared/apperror"
	"docsec-backend/internal/shared/metrics"
	"docsec-backend/internal/shared/telemetry"
)

// Service runs analyses against the registered provider adapters. It keeps no
// per-request state, so one Service serves concurrent requests.
type Service struct {
	Repo            Repo
	Clients         map[llm.Provider]llm.Client
	DefaultProvider llm.Provider
	Timeout         time.Duration
}

// NewService registers clients by the provider they report.
func NewService(repo Repo, timeout time.Duration, clients ...llm.Client) *Service {
	s := &Service{
		Repo:            repo,
		Clients:         make(map[llm.Provider]llm.Client, len(clients)),
		DefaultProvider: llm.ProviderClaude,
		Timeout:         timeout,
	}
	for _, c := range clients {
		if c != nil {
			s.Clients[c.Provider()] = c
		}
	}
	return s
}

// ProviderStatus reports whether a provider can currently be used.
type ProviderStatus struct {
	Name       llm.Provider `json:"name"`
	Configured bool         `json:"configured"`
}

// Providers lists every supported provider with its configuration state.
func (s *Service) Providers() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(llm.Providers()))
	for _, p := range llm.Providers() {
		status := ProviderStatus{Name: p}
		if c, ok := s.Clients[p]; ok {
			status.Configured = true
			if cfg, ok := c.(interface{ Configured() bool }); ok {
				status.Configured = cfg.Configured()
			}
		}
		out = append(out, status)
	}
	return out
}

// Run validates the content, calls the provider once and structures the answer.
// It returns either a complete Result or a single classified error.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	if err := ValidateContent(req.Content.Text); err != nil {
		return Result{}, err
	}
	instruction := llm.SelectInstruction(req.AnalysisType, req.CustomPrompt)

	provider := req.Provider
	if provider == "" {
		provider = s.DefaultProvider
	}
	client, err := s.resolve(provider)
	if err != nil {
		return Result{}, err
	}

	fields := map[string]any{
		"request_id":     requestIDFromContext(ctx),
		"provider":       string(provider),
		"analysis_type":  req.AnalysisType,
		"custom_prompt":  req.CustomPrompt != "",
		"prompt_version": llm.PromptVersion,
		"prompt_hash":    llm.HashPrompt(instruction),
		"content_chars":  req.Content.CharacterCount,
	}
	metrics.IncAnalysisStarted()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	start := time.Now()
	resp, err := client.Analyze(callCtx, req.Content.Text, instruction)
	elapsed := time.Since(start)
	deadlineHit := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()

	fields["duration_ms"] = elapsed.Milliseconds()
	metrics.ObserveAnalysisDurationMs(float64(elapsed.Microseconds()) / 1000.0)

	if err != nil {
		failure := classify(provider, err, deadlineHit, elapsed)
		fields["error_kind"] = string(failure.Kind)
		fields["retryable"] = failure.Kind.Retryable()
		fields["err"] = failure.Error()
		metrics.IncAnalysisFailed(string(provider), string(failure.Kind))
		telemetry.Error("analysis.run", fields)
		return Result{}, failure
	}

	result := Result{
		Provider:         string(provider),
		Model:            resp.Model,
		Analysis:         resp.Text,
		TokensUsed:       resp.TokensUsed,
		Structured:       Structure(resp.Text, req.AnalysisType),
		ProcessingTimeMs: elapsed.Milliseconds(),
		ContentLength:    utf8.RuneCountInString(req.Content.Text),
		Timestamp:        time.Now().UTC(),
	}
	fields["model"] = result.Model
	fields["tokens"] = result.TokensUsed
	metrics.IncAnalysisCompleted()
	telemetry.Info("analysis.run", fields)
	return result, nil
}

func (s *Service) resolve(p llm.Provider) (llm.Client, error) {
	if !p.Valid() {
		return nil, apperror.Newf(apperror.UnsupportedProvider, "analyses", "unsupported provider %q", p)
	}
	client, ok := s.Clients[p]
	if !ok || client == nil {
		return nil, &apperror.Error{Kind: apperror.NotConfigured, Op: "analyses", Provider: string(p), Err: fmt.Errorf("provider %s is not registered", p)}
	}
	return client, nil
}

func (s *Service) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return llm.DefaultTimeout
}

// classify guarantees every adapter failure leaves with a kind, the provider and
// the elapsed time.
func classify(p llm.Provider, err error, deadlineHit bool, elapsed time.Duration) *apperror.Error {
	if _, ok := apperror.KindOf(err); !ok {
		kind := apperror.Unavailable
		if deadlineHit || errors.Is(err, context.DeadlineExceeded) {
			kind = apperror.Timeout
		}
		err = apperror.ForProvider(kind, string(p), err)
	}
	failure := apperror.WithElapsed(err, elapsed)
	if failure.Provider == "" {
		failure.Provider = string(p)
	}
	return failure
}

// Start records a queued analysis and completes it in the background. Content
// and provider are checked before anything is stored.
func (s *Service) Start(ctx context.Context, userID, documentID string, req Request) (Analysis, error) {
	if documentID == "" || userID == "" {
		return Analysis{}, errors.New("documentID and userID are required")
	}
	if err := ValidateContent(req.Content.Text); err != nil {
		return Analysis{}, err
	}
	if req.Provider == "" {
		req.Provider = s.DefaultProvider
	}
	if _, err := s.resolve(req.Provider); err != nil {
		return Analysis{}, err
	}

	now := time.Now().UTC()
	analysis := Analysis{
		ID:            uuid.NewString(),
		DocumentID:    documentID,
		UserID:        userID,
		Provider:      string(req.Provider),
		AnalysisType:  req.AnalysisType,
		CustomPrompt:  req.CustomPrompt,
		PromptVersion: llm.PromptVersion,
		Status:        StatusQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}

	go s.completeAsync(backgroundWithRequestID(ctx), analysis, req)
	return analysis, nil
}

// Get returns an analysis owned by userID.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if a.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

// List returns analyses for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) completeAsync(ctx context.Context, analysis Analysis, req Request) {
	defer func() {
		if r := recover(); r != nil {
			s.failAnalysis(ctx, analysis, fmt.Errorf("panic: %v", r))
		}
	}()

	startedAt := time.Now().UTC()
	if err := s.Repo.MarkProcessing(ctx, analysis.ID, startedAt); err != nil {
		s.failAnalysis(ctx, analysis, fmt.Errorf("set processing failed: %w", err))
		return
	}
	logTransition(ctx, analysis, StatusProcessing, "queued->processing", nil)

	result, err := s.Run(ctx, req)
	if err != nil {
		s.failAnalysis(ctx, analysis, err)
		return
	}

	completedAt := time.Now().UTC()
	if err := s.Repo.Complete(ctx, analysis.ID, result, completedAt); err != nil {
		s.failAnalysis(ctx, analysis, fmt.Errorf("set analysis result failed: %w", err))
		return
	}
	logTransition(ctx, analysis, StatusCompleted, "processing->completed", map[string]any{
		"duration_ms": result.ProcessingTimeMs,
	})
}

func (s *Service) failAnalysis(ctx context.Context, analysis Analysis, err error) {
	kind, ok := apperror.KindOf(err)
	if !ok {
		kind = "Internal"
	}
	msg := sanitizeError(err)
	if updateErr := s.Repo.Fail(context.Background(), analysis.ID, string(kind), msg, kind.Retryable(), time.Now().UTC()); updateErr != nil {
		telemetry.Error("analysis.fail_update", map[string]any{
			"analysis_id": analysis.ID,
			"err":         updateErr,
			"orig_err":    msg,
		})
	}
	logTransition(ctx, analysis, StatusFailed, "processing->failed", map[string]any{
		"error_kind": string(kind),
		"retryable":  kind.Retryable(),
	})
}

func logTransition(ctx context.Context, analysis Analysis, status, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"document_id":       analysis.DocumentID,
		"analysis_id":       analysis.ID,
		"status":            status,
		"status_transition": transition,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("analysis.status", fields)
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
