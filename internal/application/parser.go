package application

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
)

// ErrNoSummaryArray is returned when a reply contains no well-formed JSON array.
var ErrNoSummaryArray = errors.New("no JSON array found in reply")

// summaryItem is one element of the summary array the AI collaborator returns.
// Fields are loosely typed; normalisation happens after decoding.
type summaryItem struct {
	Title               string      `json:"title" validate:"notblank"`
	Description         string      `json:"description"`
	TestType            string      `json:"testType"`
	Priority            string      `json:"priority"`
	EstimatedComplexity flexibleInt `json:"estimatedComplexity"`
	FunctionName        *string     `json:"functionName"`
}

// flexibleInt accepts a JSON number or a numeric string. Anything else decodes to 0.
type flexibleInt int

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexibleInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*f = flexibleInt(v)
		}
	}
	return nil
}

// stripCodeFences removes every markdown fence line (```, ```json, ```ts, ...)
// and trims surrounding whitespace.
func stripCodeFences(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// decodeArrayAt decodes the JSON array starting at text[0]. Trailing text is
// ignored.
func decodeArrayAt(text string) ([]json.RawMessage, bool) {
	var elems []json.RawMessage
	if err := json.NewDecoder(strings.NewReader(text)).Decode(&elems); err != nil {
		return nil, false
	}
	return elems, true
}

// parseSummaries extracts usable summaries for filePath from a raw reply.
// Every well-formed JSON array in the reply is tried in order and the first
// one holding at least one usable item wins, so prose such as "returns []"
// or "see [1]" ahead of the real array is skipped. Elements that do not
// decode as objects or lack a title are dropped; the rest are normalised.
// IDs are not assigned here.
func parseSummaries(reply, filePath string) ([]model.TestSummary, error) {
	text := stripCodeFences(reply)

	found := false
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		elems, ok := decodeArrayAt(text[i:])
		if !ok {
			continue
		}
		found = true
		if summaries := usableSummaries(elems, filePath); len(summaries) > 0 {
			return summaries, nil
		}
	}

	if !found {
		return nil, ErrNoSummaryArray
	}
	return nil, nil
}

func usableSummaries(elems []json.RawMessage, filePath string) []model.TestSummary {
	summaries := make([]model.TestSummary, 0, len(elems))
	for _, raw := range elems {
		var item summaryItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if err := validate.Struct(item); err != nil {
			continue
		}
		summaries = append(summaries, item.normalize(filePath))
	}
	return summaries
}

func (it summaryItem) normalize(filePath string) model.TestSummary {
	title := strings.TrimSpace(it.Title)
	description := strings.TrimSpace(it.Description)
	if description == "" {
		description = title
	}

	var functionName string
	if it.FunctionName != nil {
		functionName = strings.TrimSpace(*it.FunctionName)
	}

	return model.TestSummary{
		Title:               title,
		Description:         description,
		TestType:            normalizeTestType(it.TestType),
		Priority:            normalizePriority(it.Priority),
		EstimatedComplexity: clampComplexity(int(it.EstimatedComplexity)),
		FunctionName:        functionName,
		FilePath:            filePath,
	}
}

// normalizeTestType maps free-form spellings onto the known test types.
// Unrecognised values become unit.
func normalizeTestType(s string) model.TestType {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "integration":
		return model.TestTypeIntegration
	case "edgecase", "edge", "edgecases":
		return model.TestTypeEdgeCase
	default:
		return model.TestTypeUnit
	}
}

// normalizePriority maps free-form priorities; unrecognised values become medium.
func normalizePriority(s string) model.Priority {
	switch model.Priority(strings.ToLower(strings.TrimSpace(s))) {
	case model.PriorityHigh:
		return model.PriorityHigh
	case model.PriorityLow:
		return model.PriorityLow
	default:
		return model.PriorityMedium
	}
}

// clampComplexity bounds c to 1..5; a missing value (0) becomes 3.
func clampComplexity(c int) int {
	switch {
	case c == 0:
		return fallbackComplexity
	case c < model.MinComplexity:
		return model.MinComplexity
	case c > model.MaxComplexity:
		return model.MaxComplexity
	default:
		return c
	}
}
