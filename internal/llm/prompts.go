package llm

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Analysis types with a built-in instruction.
const (
	AnalysisSecurityReview  = "security-review"
	AnalysisPolicyAnalysis  = "policy-analysis"
	AnalysisComplianceCheck = "compliance-check"
	AnalysisGeneral         = "general"
)

//go:embed prompts/v1.yaml
var promptsV1 []byte

type promptTable struct {
	Version      string            `yaml:"version"`
	Persona      string            `yaml:"persona"`
	Instructions map[string]string `yaml:"instructions"`
}

var prompts = mustLoadPrompts(promptsV1)

// PromptVersion identifies the embedded instruction set.
var PromptVersion = prompts.Version

func mustLoadPrompts(raw []byte) promptTable {
	table, err := loadPrompts(raw)
	if err != nil {
		panic(err)
	}
	return table
}

func loadPrompts(raw []byte) (promptTable, error) {
	var table promptTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return promptTable{}, fmt.Errorf("parse prompts: %w", err)
	}
	for _, key := range []string{AnalysisSecurityReview, AnalysisPolicyAnalysis, AnalysisComplianceCheck, AnalysisGeneral} {
		text := strings.TrimSpace(table.Instructions[key])
		if text == "" {
			return promptTable{}, fmt.Errorf("parse prompts: missing instruction %q", key)
		}
		table.Instructions[key] = text
	}
	table.Persona = strings.TrimSpace(table.Persona)
	return table, nil
}

// SelectInstruction returns customPrompt verbatim when it is non-empty, otherwise
// the built-in instruction for analysisType, falling back to general.
// Whitespace-only prompts are still custom prompts.
func SelectInstruction(analysisType, customPrompt string) string {
	if customPrompt != "" {
		return customPrompt
	}
	if text, ok := prompts.Instructions[analysisType]; ok {
		return text
	}
	return prompts.Instructions[AnalysisGeneral]
}

// SystemPersona is the system message for providers that take one.
func SystemPersona() string {
	return prompts.Persona
}

// AnalysisTypes lists the analysis types with a built-in instruction.
func AnalysisTypes() []string {
	types := make([]string, 0, len(prompts.Instructions))
	for k := range prompts.Instructions {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// IsAnalysisType reports whether t has a built-in instruction.
func IsAnalysisType(t string) bool {
	_, ok := prompts.Instructions[t]
	return ok
}
