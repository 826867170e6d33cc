package application_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/suitegen/internal/application"
	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

var testRepo = model.Repository{FullName: "acme/api", Owner: "acme", Name: "api"}

func paths(nodes []*model.FileNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Path)
	}
	return out
}

func TestTreeBuilder_BuildsNestedCatalogInHostOrder(t *testing.T) {
	host := newFakeHost()
	host.dirs[""] = []model.FileNode{
		file("index.ts", "index.ts"),
		dir("src", "src"),
		file("README.md", "README.md"),
	}
	host.dirs["src"] = []model.FileNode{
		file("src/b.ts", "b.ts"),
		dir("src/lib", "lib"),
		file("src/a.ts", "a.ts"),
	}
	host.dirs["src/lib"] = []model.FileNode{
		file("src/lib/deep.py", "deep.py"),
	}

	catalog, err := application.NewTreeBuilder(2, nil).Build(context.Background(), host, testRepo)
	require.NoError(t, err)

	assert.Equal(t, []string{"index.ts", "src"}, paths(catalog.Root))
	src := catalog.Find("src")
	require.NotNil(t, src)
	assert.Equal(t, []string{"src/b.ts", "src/lib", "src/a.ts"}, paths(src.Children))
	assert.Equal(t, []string{"index.ts", "src/b.ts", "src/lib/deep.py", "src/a.ts"}, paths(catalog.Files()))

	deep := catalog.Find("src/lib/deep.py")
	require.NotNil(t, deep)
	assert.Equal(t, "Python", deep.Language)
	assert.Empty(t, catalog.Failures)
}

func TestTreeBuilder_FailedSubtreeKeepsEmptyDirectoryAndSiblings(t *testing.T) {
	host := newFakeHost()
	host.dirs[""] = []model.FileNode{
		dir("private", "private"),
		dir("src", "src"),
		file("main.go", "main.go"),
	}
	host.listErrs["private"] = &driven.HostError{Op: "list directory", StatusCode: http.StatusForbidden, Message: "forbidden"}
	host.dirs["src"] = []model.FileNode{file("src/app.js", "app.js")}

	catalog, err := application.NewTreeBuilder(0, nil).Build(context.Background(), host, testRepo)
	require.NoError(t, err)

	private := catalog.Find("private")
	require.NotNil(t, private)
	assert.True(t, private.IsDir())
	assert.NotNil(t, private.Children)
	assert.Empty(t, private.Children)

	assert.NotNil(t, catalog.Find("src/app.js"))
	assert.NotNil(t, catalog.Find("main.go"))

	require.Len(t, catalog.Failures, 1)
	assert.Equal(t, "private", catalog.Failures[0].Path)
	var hostErr *driven.HostError
	assert.ErrorAs(t, catalog.Failures[0].Err, &hostErr)
}

func TestTreeBuilder_OnlyTestableFilesAtAnyDepth(t *testing.T) {
	host := newFakeHost()
	host.dirs[""] = []model.FileNode{
		file("package.json", "package.json"),
		file("logo.png", "logo.png"),
		dir("a", "a"),
	}
	host.dirs["a"] = []model.FileNode{dir("a/b", "b"), file("a/notes.txt", "notes.txt")}
	host.dirs["a/b"] = []model.FileNode{
		file("a/b/config.yaml", "config.yaml"),
		file("a/b/util.rs", "util.rs"),
		file("a/b/Makefile", "Makefile"),
	}

	catalog, err := application.NewTreeBuilder(4, nil).Build(context.Background(), host, testRepo)
	require.NoError(t, err)

	assert.Equal(t, []string{"a/b/util.rs"}, paths(catalog.Files()))
	for _, f := range catalog.Files() {
		assert.True(t, model.IsTestable(f.Path))
		assert.NotEqual(t, model.UnknownLanguage, f.Language)
	}
}

func TestTreeBuilder_RootFailureFailsBuild(t *testing.T) {
	host := newFakeHost()
	host.listErrs[""] = &driven.HostError{Op: "list directory", StatusCode: http.StatusUnauthorized, Message: "Bad credentials"}

	catalog, err := application.NewTreeBuilder(4, nil).Build(context.Background(), host, testRepo)

	assert.Nil(t, catalog)
	var hostErr *driven.HostError
	require.True(t, errors.As(err, &hostErr))
	assert.Equal(t, http.StatusUnauthorized, hostErr.StatusCode)
}

func TestTreeBuilder_SkipsIgnoredDirectories(t *testing.T) {
	host := newFakeHost()
	host.dirs[""] = []model.FileNode{
		dir("node_modules", "node_modules"),
		dir("web", "web"),
	}
	host.dirs["web"] = []model.FileNode{dir("web/node_modules", "node_modules"), file("web/app.tsx", "app.tsx")}

	catalog, err := application.NewTreeBuilder(4, application.DefaultIgnorePatterns).Build(context.Background(), host, testRepo)
	require.NoError(t, err)

	assert.Nil(t, catalog.Find("node_modules"))
	assert.Nil(t, catalog.Find("web/node_modules"))
	assert.NotNil(t, catalog.Find("web/app.tsx"))
	assert.NotContains(t, host.listed, "node_modules")
	assert.NotContains(t, host.listed, "web/node_modules")
}

func TestTreeBuilder_CancelledContextFailsBuild(t *testing.T) {
	host := newFakeHost()
	host.dirs[""] = []model.FileNode{dir("src", "src"), file("main.go", "main.go")}
	host.dirs["src"] = []model.FileNode{file("src/app.go", "app.go")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host.afterList = func(path string) {
		if path == "" {
			cancel()
		}
	}

	catalog, err := application.NewTreeBuilder(4, nil).Build(ctx, host, testRepo)

	assert.Nil(t, catalog)
	assert.ErrorIs(t, err, context.Canceled)
}
