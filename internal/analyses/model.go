package analyses

import (
	"time"

	"docsec-backend/internal/extract"
	"docsec-backend/internal/llm"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// MaxCustomPromptLength is the longest custom instruction accepted from callers.
const MaxCustomPromptLength = 1000

// Request asks for one analysis of already-extracted content.
type Request struct {
	Content      extract.ExtractedText
	Provider     llm.Provider
	AnalysisType string
	CustomPrompt string
}

// Sections is the best-effort split of a model answer.
type Sections struct {
	Summary         string   `json:"summary"`
	Findings        []string `json:"findings"`
	Recommendations []string `json:"recommendations"`
	Risks           []string `json:"risks"`
	Compliance      []string `json:"compliance"`
}

// Result is the outcome of a successful analysis.
type Result struct {
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Analysis         string    `json:"analysis"`
	TokensUsed       int       `json:"tokensUsed"`
	Structured       Sections  `json:"structured"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	ContentLength    int       `json:"contentLength"`
	Timestamp        time.Time `json:"timestamp"`
}

// Analysis is a persisted asynchronous analysis job.
type Analysis struct {
	ID            string     `json:"id"`
	DocumentID    string     `json:"documentId"`
	UserID        string     `json:"userId"`
	Provider      string     `json:"provider"`
	AnalysisType  string     `json:"analysisType"`
	CustomPrompt  string     `json:"customPrompt,omitempty"`
	PromptVersion string     `json:"promptVersion"`
	Status        string     `json:"status"`
	Result        *Result    `json:"result,omitempty"`
	ErrorKind     string     `json:"errorKind,omitempty"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
	Retryable     bool       `json:"retryable"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}
