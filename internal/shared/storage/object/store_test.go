package object

import (
	"io"
	"strings"
	"testing"
)

func TestHashUserKey(t *testing.T) {
	got := HashUserKey("guest:abc")
	if got != HashUserKey("guest:abc") {
		t.Fatalf("expected stable hash, got %s", got)
	}
	if len(got) != 64 || strings.Trim(got, "0123456789abcdef") != "" {
		t.Fatalf("expected 64 lowercase hex characters, got %q", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "policy.pdf", want: "policy.pdf"},
		{in: " dir/sub\\file.docx ", want: "dir_sub_file.docx"},
		{in: "../etc/passwd", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestNewKeyNamespacesByUser(t *testing.T) {
	key, err := NewKey("user-1", "report.txt")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	if !strings.HasPrefix(key, HashUserKey("user-1")+"/") || !strings.HasSuffix(key, "_report.txt") {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestSniffReplaysContent(t *testing.T) {
	payload := "%PDF-1.4\n" + strings.Repeat("x", 5000)
	mimeType, body, err := Sniff(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Sniff: %v", err)
	}
	if mimeType != "application/pdf" {
		t.Fatalf("mime = %q", mimeType)
	}
	counter := &CountingReader{R: body}
	data, err := io.ReadAll(counter)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != payload || counter.N != int64(len(payload)) {
		t.Fatalf("replayed %d bytes, counted %d", len(data), counter.N)
	}
}
