package driven

import (
	"context"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
)

// SummaryGenerator produces test summaries for one file. Implementations may
// fail; the pipeline converts failures into fallback summaries.
type SummaryGenerator interface {
	Summarize(ctx context.Context, file model.SelectedFileContent) ([]model.TestSummary, error)
}

// CodeGenerator produces test code for one summary. Implementations may fail;
// the pipeline converts failures into fallback skeletons.
type CodeGenerator interface {
	GenerateCode(ctx context.Context, summary model.TestSummary) (model.GeneratedTest, error)
}
