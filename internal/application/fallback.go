package application

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// fallbackComplexity is the estimated complexity of a fallback summary.
const fallbackComplexity = 3

var (
	_ driven.SummaryGenerator = (*FallbackGenerator)(nil)
	_ driven.CodeGenerator    = (*FallbackGenerator)(nil)
)

// FallbackGenerator is the deterministic, local generator used whenever the
// AI collaborator fails. It never returns an error.
type FallbackGenerator struct{}

// NewFallbackGenerator creates a FallbackGenerator.
func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{}
}

// Summarize returns exactly one generic unit-test summary for the file.
func (g *FallbackGenerator) Summarize(_ context.Context, file model.SelectedFileContent) ([]model.TestSummary, error) {
	base := path.Base(file.Path)
	return []model.TestSummary{{
		Title:               "Basic tests for " + base,
		Description:         fmt.Sprintf("Covers the primary behaviour of %s with representative inputs.", base),
		TestType:            model.TestTypeUnit,
		Priority:            model.PriorityMedium,
		EstimatedComplexity: fallbackComplexity,
		FilePath:            file.Path,
		Fallback:            true,
	}}, nil
}

// GenerateCode returns a skeleton test whose shape depends on the summary's
// test type.
func (g *FallbackGenerator) GenerateCode(_ context.Context, summary model.TestSummary) (model.GeneratedTest, error) {
	return model.GeneratedTest{
		Code:     skeleton(summary),
		Fallback: true,
	}, nil
}

func skeleton(s model.TestSummary) string {
	switch {
	case s.TestType == model.TestTypeUnit && s.FunctionName != "":
		return unitSkeleton(s.FunctionName, model.TrimExtension(s.FilePath))
	case s.TestType == model.TestTypeIntegration:
		return integrationSkeleton(s.Title, s.FilePath)
	default:
		return edgeCaseSkeleton(s.Title)
	}
}

func unitSkeleton(fn, importPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "import { %s } from '%s';\n\n", fn, jsString(importPath))
	fmt.Fprintf(&b, "describe('%s', () => {\n", jsString(fn))
	b.WriteString("  it('should return the expected result for valid input', () => {\n")
	b.WriteString("    const input = 'valid input';\n")
	fmt.Fprintf(&b, "    const expected = %s(input);\n", fn)
	fmt.Fprintf(&b, "    expect(%s(input)).toEqual(expected);\n", fn)
	b.WriteString("  });\n\n")
	b.WriteString("  it('should handle null and undefined input without throwing', () => {\n")
	fmt.Fprintf(&b, "    expect(() => %s(null)).not.toThrow();\n", fn)
	fmt.Fprintf(&b, "    expect(() => %s(undefined)).not.toThrow();\n", fn)
	b.WriteString("  });\n\n")
	b.WriteString("  it('should throw on invalid input', () => {\n")
	fmt.Fprintf(&b, "    expect(() => %s(Symbol('invalid'))).toThrow();\n", fn)
	b.WriteString("  });\n")
	b.WriteString("});\n")
	return b.String()
}

func integrationSkeleton(title, filePath string) string {
	module := moduleIdentifier(path.Base(model.TrimExtension(filePath)))

	var b strings.Builder
	fmt.Fprintf(&b, "import * as %s from '%s';\n\n", module, jsString(model.TrimExtension(filePath)))
	fmt.Fprintf(&b, "describe('%s', () => {\n", jsString(title))
	b.WriteString("  it('should make multiple functions work together', () => {\n")
	fmt.Fprintf(&b, "    expect(%s).toBeDefined();\n", module)
	b.WriteString("  });\n\n")
	b.WriteString("  it('should complete the end-to-end workflow', () => {\n")
	fmt.Fprintf(&b, "    expect(Object.keys(%s).length).toBeGreaterThan(0);\n", module)
	b.WriteString("  });\n")
	b.WriteString("});\n")
	return b.String()
}

func edgeCaseSkeleton(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "describe('%s', () => {\n", jsString(title))
	b.WriteString("  it('should handle boundary conditions', () => {\n")
	b.WriteString("    expect(true).toBe(true);\n")
	b.WriteString("  });\n\n")
	b.WriteString("  it('should handle error conditions', () => {\n")
	b.WriteString("    expect(true).toBe(true);\n")
	b.WriteString("  });\n\n")
	b.WriteString("  it('should handle concurrent operations', () => {\n")
	b.WriteString("    expect(true).toBe(true);\n")
	b.WriteString("  });\n")
	b.WriteString("});\n")
	return b.String()
}

// jsString escapes s for a single-quoted JavaScript string literal.
func jsString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(s)
}

// moduleIdentifier turns a file basename into a valid JavaScript identifier.
func moduleIdentifier(base string) string {
	var b strings.Builder
	for i, r := range base {
		switch {
		case unicode.IsLetter(r) || r == '_' || r == '$':
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "subject"
	}
	return b.String()
}
