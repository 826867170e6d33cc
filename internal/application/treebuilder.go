package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// DefaultTreeConcurrency bounds concurrent directory listings per tree level.
const DefaultTreeConcurrency = 8

// DefaultIgnorePatterns are directory globs skipped by default.
var DefaultIgnorePatterns = []string{"**/node_modules", "**/.git"}

// TreeBuilder turns one-level directory listings into a nested catalog of
// testable files. Directories are processed level by level; all listings of
// a level run concurrently and all of them, failed ones included, resolve
// before the next level starts.
type TreeBuilder struct {
	concurrency int
	ignore      []string
}

// NewTreeBuilder creates a TreeBuilder. concurrency <= 0 uses
// DefaultTreeConcurrency. Directories whose path matches any ignore glob are
// left out of the catalog.
func NewTreeBuilder(concurrency int, ignore []string) *TreeBuilder {
	if concurrency <= 0 {
		concurrency = DefaultTreeConcurrency
	}
	return &TreeBuilder{concurrency: concurrency, ignore: ignore}
}

// listing is the outcome of one directory listing in a level.
type listing struct {
	entries []model.FileNode
	err     error
}

// Build walks the repository from its root. A failed root listing fails the
// build; any deeper failure keeps the directory with no children and is
// recorded in Catalog.Failures. A cancelled ctx fails the build.
func (b *TreeBuilder) Build(ctx context.Context, reader driven.RepositoryReader, repo model.Repository) (*model.Catalog, error) {
	entries, err := reader.ListDirectory(ctx, repo.Owner, repo.Name, "")
	if err != nil {
		return nil, fmt.Errorf("list root of %s: %w", repo.FullName, err)
	}

	catalog := &model.Catalog{Repository: repo}
	catalog.Root = b.keep(entries)

	level := directories(catalog.Root)
	for depth := 1; len(level) > 0; depth++ {
		results := b.listLevel(ctx, reader, repo, level)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("build tree of %s: %w", repo.FullName, err)
		}

		var next []*model.FileNode
		for i, dir := range level {
			if results[i].err != nil {
				slog.Warn("subtree listing failed, keeping empty directory",
					"repo", repo.FullName,
					"path", dir.Path,
					"depth", depth,
					"error", results[i].err,
				)
				subtreeFailures.Inc()
				dir.Children = []*model.FileNode{}
				catalog.Failures = append(catalog.Failures, model.SubtreeFailure{Path: dir.Path, Err: results[i].err})
				continue
			}
			dir.Children = b.keep(results[i].entries)
			next = append(next, directories(dir.Children)...)
		}

		slog.Debug("tree level built", "repo", repo.FullName, "depth", depth, "directories", len(level))
		level = next
	}

	return catalog, nil
}

// listLevel lists every directory of one level concurrently. Results are
// indexed like dirs.
func (b *TreeBuilder) listLevel(ctx context.Context, reader driven.RepositoryReader, repo model.Repository, dirs []*model.FileNode) []listing {
	results := make([]listing, len(dirs))

	var g errgroup.Group
	g.SetLimit(b.concurrency)

	for i, dir := range dirs {
		g.Go(func() error {
			entries, err := reader.ListDirectory(ctx, repo.Owner, repo.Name, dir.Path)
			results[i] = listing{entries: entries, err: err}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// keep converts host entries into catalog nodes, dropping non-testable files
// and ignored directories. Host order is preserved.
func (b *TreeBuilder) keep(entries []model.FileNode) []*model.FileNode {
	nodes := make([]*model.FileNode, 0, len(entries))
	for _, entry := range entries {
		switch {
		case entry.IsDir():
			if b.ignored(entry.Path) {
				continue
			}
			nodes = append(nodes, &model.FileNode{
				Name:     entry.Name,
				Path:     entry.Path,
				Type:     model.NodeTypeDirectory,
				Children: []*model.FileNode{},
			})
		case model.IsTestable(entry.Path):
			nodes = append(nodes, &model.FileNode{
				Name:     entry.Name,
				Path:     entry.Path,
				Type:     model.NodeTypeFile,
				Language: model.DetectLanguage(entry.Path),
			})
		}
	}
	return nodes
}

func (b *TreeBuilder) ignored(path string) bool {
	for _, pattern := range b.ignore {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}

func directories(nodes []*model.FileNode) []*model.FileNode {
	var dirs []*model.FileNode
	for _, n := range nodes {
		if n.IsDir() {
			dirs = append(dirs, n)
		}
	}
	return dirs
}
