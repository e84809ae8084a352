// Package plugins runs the compiler over the configured query files and
// writes the generated Python modules.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/vektah/gqlparser/v2/ast"
	"golang.org/x/sync/errgroup"

	"github.com/s1s5/python-graphql-compiler/codegen"
	"github.com/s1s5/python-graphql-compiler/config"
	"github.com/s1s5/python-graphql-compiler/plugins/pygen"
	"github.com/s1s5/python-graphql-compiler/queryparser"
)

// GenerateCode compiles every query file named by cfg. cfg.Schema must be loaded.
//
// With output_path set all operations go to that one file and the first error
// aborts. Otherwise each query file gets a Python module next to it, files are
// compiled concurrently and the failures of all files are returned together.
func GenerateCode(ctx context.Context, cfg *config.Config) error {
	if cfg.Schema == nil {
		return errors.New("schema is not loaded")
	}

	files, err := cfg.QueryFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		slog.WarnContext(ctx, "no query files found", "query", []string(cfg.Query))
		return nil
	}

	sources, err := queryparser.LoadQuerySources(files)
	if err != nil {
		return err
	}

	renderer := pygen.New(pygen.Options{
		ScalarMap:     cfg.ScalarMap,
		Inherit:       cfg.Inherit,
		PythonVersion: cfg.PythonVersion,
	})

	if cfg.OutputPath != "" {
		return generateSingle(ctx, cfg.Schema, renderer, sources, cfg.OutputPath)
	}
	return generatePerFile(ctx, cfg.Schema, renderer, sources)
}

func generateSingle(ctx context.Context, schema *ast.Schema, renderer *pygen.Renderer, sources []*ast.Source, outputPath string) error {
	results := make([][]*codegen.ParsedQuery, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, source := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			queries, err := compile(schema, source, sources)
			if err != nil {
				return err
			}
			results[i] = queries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var queries []*codegen.ParsedQuery
	for _, r := range results {
		queries = append(queries, r...)
	}
	if err := checkNames(queries); err != nil {
		return err
	}

	if err := write(outputPath, renderer.Render(queries)); err != nil {
		return fmt.Errorf("%s failed: %w", renderer.Name(), err)
	}
	slog.InfoContext(ctx, "generated", "path", outputPath, "operations", len(queries))

	return nil
}

func generatePerFile(ctx context.Context, schema *ast.Schema, renderer *pygen.Renderer, sources []*ast.Source) error {
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, source := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = generateFile(ctx, schema, renderer, source, sources)
			if errs[i] != nil {
				slog.ErrorContext(ctx, "generate failed", "query", source.Name, "error", errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func generateFile(ctx context.Context, schema *ast.Schema, renderer *pygen.Renderer, source *ast.Source, shared []*ast.Source) error {
	queries, err := compile(schema, source, shared)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		slog.DebugContext(ctx, "skip file without operations", "query", source.Name)
		return nil
	}
	if err := checkNames(queries); err != nil {
		return fmt.Errorf("%s: %w", source.Name, err)
	}

	outputPath := OutputPath(source.Name)
	if err := write(outputPath, renderer.Render(queries)); err != nil {
		return fmt.Errorf("%s failed: %w", renderer.Name(), err)
	}
	slog.InfoContext(ctx, "generated", "query", source.Name, "path", outputPath, "operations", len(queries))

	return nil
}

// OutputPath returns the Python module generated for a query file: the
// snake_case stem of the file in the same directory.
func OutputPath(queryFilename string) string {
	stem := strings.TrimSuffix(filepath.Base(queryFilename), filepath.Ext(queryFilename))
	return filepath.Join(filepath.Dir(queryFilename), inflect.Underscore(stem)+".py")
}

// compile validates one query file and matches its operations.
func compile(schema *ast.Schema, source *ast.Source, shared []*ast.Source) ([]*codegen.ParsedQuery, error) {
	doc, err := queryparser.QueryDocument(schema, source, shared)
	if err != nil {
		return nil, err
	}

	matcher := codegen.NewMatcher(schema, doc)
	queries := make([]*codegen.ParsedQuery, 0, len(doc.Operations))
	for _, op := range doc.Operations {
		parsed, err := matcher.Parse(op)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source.Name, err)
		}
		if err := pygen.CheckAttributes(parsed); err != nil {
			return nil, fmt.Errorf("%s: %w", source.Name, err)
		}
		queries = append(queries, parsed)
	}

	return queries, nil
}

// checkNames rejects operations whose generated names clash with each other
// or with the enums and input objects they use.
func checkNames(queries []*codegen.ParsedQuery) error {
	owners := map[string]string{}
	claim := func(name, owner string) error {
		if prev, ok := owners[name]; ok && prev != owner {
			return fmt.Errorf("name %s of %s conflicts with %s", name, owner, prev)
		}
		owners[name] = owner
		return nil
	}

	operations := map[string]bool{}
	for _, q := range queries {
		if operations[q.Name] {
			return fmt.Errorf("duplicate operation name %s", q.Name)
		}
		operations[q.Name] = true
		for _, name := range []string{q.Name, q.Name + "Input", q.Name + "Response"} {
			if err := claim(name, "operation "+q.Name); err != nil {
				return err
			}
		}
	}
	for _, q := range queries {
		for name := range q.UsedInputTypes.All() {
			if err := claim(name, "input "+name); err != nil {
				return err
			}
		}
		for name := range q.UsedEnums.All() {
			if err := claim(name, "enum "+name); err != nil {
				return err
			}
		}
	}

	return nil
}

func write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
