package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
)

// ErrUnsupportedFormat is returned for an unknown export format.
var ErrUnsupportedFormat = fmt.Errorf("%w: unsupported export format", ErrValidation)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// Export is a rendered suite.
type Export struct {
	ContentType string
	Extension   string
	Data        []byte
}

// ExportSuite renders suite in format. It reads the suite only.
func ExportSuite(suite model.TestSuite, format model.ExportFormat) (Export, error) {
	switch format {
	case model.ExportFormatJSON:
		data, err := json.MarshalIndent(toSuiteRecord(suite), "", "  ")
		if err != nil {
			return Export{}, fmt.Errorf("encode suite as json: %w", err)
		}
		return Export{ContentType: "application/json", Extension: "json", Data: data}, nil
	case model.ExportFormatYAML:
		data, err := yaml.Marshal(toSuiteRecord(suite))
		if err != nil {
			return Export{}, fmt.Errorf("encode suite as yaml: %w", err)
		}
		return Export{ContentType: "application/yaml", Extension: "yaml", Data: data}, nil
	case model.ExportFormatCode:
		return Export{ContentType: "text/plain; charset=utf-8", Extension: codeExtension(suite), Data: []byte(CodeBundle(suite))}, nil
	case model.ExportFormatMarkdown:
		return Export{ContentType: "text/markdown; charset=utf-8", Extension: "md", Data: []byte(MarkdownReport(suite))}, nil
	case model.ExportFormatHTML:
		return Export{ContentType: "text/html; charset=utf-8", Extension: "html", Data: []byte(RenderMarkdown(MarkdownReport(suite)))}, nil
	default:
		return Export{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// CodeBundle concatenates the code of every test case in suite order,
// separated by a blank line.
func CodeBundle(suite model.TestSuite) string {
	bodies := make([]string, 0, len(suite.TestCases))
	for _, tc := range suite.TestCases {
		bodies = append(bodies, tc.Code)
	}
	return strings.Join(bodies, "\n\n")
}

// MarkdownReport renders the suite as a markdown document with one section per test case.
func MarkdownReport(suite model.TestSuite) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", suite.Name)
	if suite.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", suite.Description)
	}
	fmt.Fprintf(&b, "- **Framework:** %s\n", suite.Framework)
	if suite.Language != "" {
		fmt.Fprintf(&b, "- **Language:** %s\n", suite.Language)
	}
	if len(suite.Tags) > 0 {
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(suite.Tags, ", "))
	}
	fmt.Fprintf(&b, "- **Test cases:** %d\n", len(suite.TestCases))

	lang := codeFenceLanguage(suite.Language)
	for i, tc := range suite.TestCases {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, tc.Title)
		fmt.Fprintf(&b, "_%s · %s priority · %s_\n\n", tc.TestType, tc.Priority, tc.Status)
		if tc.FilePath != "" {
			fmt.Fprintf(&b, "Source: `%s`\n\n", tc.FilePath)
		}
		if tc.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", tc.Description)
		}
		code := strings.TrimRight(tc.Code, "\n")
		fence := codeFence(code)
		fmt.Fprintf(&b, "%s%s\n%s\n%s\n", fence, lang, code, fence)
	}
	return b.String()
}

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// codeFence returns a backtick fence longer than any backtick run in code.
func codeFence(code string) string {
	longest, run := 0, 0
	for _, r := range code {
		if r != '`' {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return strings.Repeat("`", max(3, longest+1))
}

func codeFenceLanguage(language string) string {
	switch language {
	case "TypeScript":
		return "typescript"
	case "JavaScript":
		return "javascript"
	default:
		return strings.ToLower(strings.ReplaceAll(language, " ", ""))
	}
}

func codeExtension(suite model.TestSuite) string {
	if suite.Language == "TypeScript" {
		return "test.ts"
	}
	return "test.js"
}
