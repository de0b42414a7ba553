package llm

import "testing"

func TestSelectInstruction(t *testing.T) {
	general := SelectInstruction(AnalysisGeneral, "")

	tests := []struct {
		name         string
		analysisType string
		custom       string
		want         string
	}{
		{name: "custom wins", analysisType: AnalysisSecurityReview, custom: "  Only list passwords.  ", want: "  Only list passwords.  "},
		{name: "whitespace custom used verbatim", analysisType: AnalysisGeneral, custom: "   ", want: "   "},
		{name: "empty custom falls back to type", analysisType: AnalysisSecurityReview, custom: "", want: SelectInstruction(AnalysisSecurityReview, "")},
		{name: "unknown falls back", analysisType: "threat-model", want: general},
		{name: "absent falls back", analysisType: "", want: general},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectInstruction(tt.analysisType, tt.custom); got != tt.want {
				t.Fatalf("SelectInstruction = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuiltInInstructionsAreDistinct(t *testing.T) {
	seen := map[string]string{}
	for _, typ := range AnalysisTypes() {
		text := SelectInstruction(typ, "")
		if text == "" {
			t.Fatalf("%s has empty instruction", typ)
		}
		if other, ok := seen[text]; ok {
			t.Fatalf("%s and %s share an instruction", typ, other)
		}
		seen[text] = typ
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 analysis types, got %d", len(seen))
	}
	if PromptVersion != "v1" || SystemPersona() == "" {
		t.Fatalf("unexpected prompt metadata version=%q", PromptVersion)
	}
}

func TestLoadPromptsRejectsMissingType(t *testing.T) {
	raw := []byte("version: v9\ninstructions:\n  general: hi\n")
	if _, err := loadPrompts(raw); err == nil {
		t.Fatal("expected error when built-in types are missing")
	}
}
