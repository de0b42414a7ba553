package analyses

import (
	"reflect"
	"testing"
)

func TestStructure(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Sections
	}{
		{
			name: "summary heading then lines",
			raw:  "Summary: ok\nFinding: none",
			want: Sections{Summary: "Summary: ok", Compliance: []string{"Finding: none"}},
		},
		{
			name: "no heading keeps everything in summary",
			raw:  "The document exposes credentials.\nRotate them.",
			want: Sections{Summary: "The document exposes credentials.\nRotate them."},
		},
		{
			name: "preamble before heading",
			raw:  "Intro line\r\n## Overview\r\n- item one\r\n\r\n- item two\r\n",
			want: Sections{Summary: "Intro line\n## Overview", Compliance: []string{"- item one", "- item two"}},
		},
		{
			name: "second heading stays in compliance",
			raw:  "Executive summary\nfirst\nOverview again\nsecond",
			want: Sections{Summary: "Executive summary", Compliance: []string{"first", "Overview again", "second"}},
		},
		{
			name: "empty",
			raw:  "",
			want: Sections{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Structure(tt.raw, "general")
			want := tt.want
			fill(&want)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("Structure() = %#v, want %#v", got, want)
			}
		})
	}
}

func TestStructureSameForEveryType(t *testing.T) {
	raw := "Summary\nline"
	base := Structure(raw, "general")
	for _, typ := range []string{"security-review", "policy-analysis", "compliance-check", "unknown"} {
		if got := Structure(raw, typ); !reflect.DeepEqual(got, base) {
			t.Fatalf("type %s: got %#v", typ, got)
		}
	}
}

func TestStructureListsAreNonNil(t *testing.T) {
	got := Structure("just text", "general")
	if got.Findings == nil || got.Recommendations == nil || got.Risks == nil || got.Compliance == nil {
		t.Fatalf("expected empty non-nil lists, got %#v", got)
	}
}

func fill(s *Sections) {
	if s.Findings == nil {
		s.Findings = []string{}
	}
	if s.Recommendations == nil {
		s.Recommendations = []string{}
	}
	if s.Risks == nil {
		s.Risks = []string{}
	}
	if s.Compliance == nil {
		s.Compliance = []string{}
	}
}
