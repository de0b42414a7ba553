package analyses

import (
	"context"
	"strings"
	"sync/atomic"

	"docsec-backend/internal/extract"
	"docsec-backend/internal/llm"
)

// fakeClient records calls and answers with a canned response or error. When
// block is set it waits for the context to end instead.
type fakeClient struct {
	provider llm.Provider
	resp     llm.Response
	err      error
	block    bool
	calls    atomic.Int32

	lastContent     atomic.Value
	lastInstruction atomic.Value
}

func (f *fakeClient) Provider() llm.Provider { return f.provider }

func (f *fakeClient) Analyze(ctx context.Context, content, instruction string) (llm.Response, error) {
	f.calls.Add(1)
	f.lastContent.Store(content)
	f.lastInstruction.Store(instruction)
	if f.block {
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	}
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return f.resp, nil
}

func (f *fakeClient) instruction() string {
	v, _ := f.lastInstruction.Load().(string)
	return v
}

func longText() extract.ExtractedText {
	text := strings.Repeat("Access keys are stored in plain text. ", 3)
	return extract.ExtractedText{Text: text, SourceMimeType: extract.MimePlain, CharacterCount: len(text)}
}
