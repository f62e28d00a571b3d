// Package category builds the link-coloring stylesheets from the wiki's
// membership categories.
package category

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aymerick/douceur/parser"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Generator fetches every configured category and writes the stylesheets.
type Generator struct {
	Config  Config
	Fetcher Fetcher
	OutDir  string
	Logger  *zap.Logger
	// Concurrency bounds in-flight category fetches. Zero means 4.
	Concurrency int
}

// FileResult describes one written stylesheet.
type FileResult struct {
	Name      string
	Path      string
	Selectors int
	Bytes     int
}

// Result summarizes a run. Failed lists categories whose listing was cut
// short; their partial titles are still included.
type Result struct {
	Files  []FileResult
	Failed []string
}

type groupCSS struct {
	group     Group
	rules     []string
	selectors int
}

// Run fetches, renders, verifies and writes every active group plus the
// combined stylesheet.
func (g *Generator) Run(ctx context.Context) (Result, error) {
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := g.Config.Validate(); err != nil {
		return Result{}, err
	}
	if g.Fetcher == nil {
		return Result{}, fmt.Errorf("generator: no fetcher")
	}
	if err := os.MkdirAll(g.OutDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	var res Result
	groups := g.Config.Active()
	built := make([]groupCSS, 0, len(groups))
	for _, grp := range groups {
		css, failed, err := g.buildGroup(ctx, grp, logger)
		if err != nil {
			return res, err
		}
		res.Failed = append(res.Failed, failed...)
		built = append(built, css)

		content := Variables([]LinkColor{grp.LinkColor}) + "\n" + strings.Join(css.rules, "\n")
		fr, err := g.write(grp.CSSFilename, content, css.selectors)
		if err != nil {
			return res, err
		}
		res.Files = append(res.Files, fr)
		logger.Info("Successfully created CSS file", zap.String("file", fr.Name), zap.Int("selectors", fr.Selectors))
	}

	colors := make([]LinkColor, len(built))
	rules := make([]string, len(built))
	total := 0
	for i, b := range built {
		colors[i] = b.group.LinkColor
		rules[i] = strings.Join(b.rules, "\n")
		total += b.selectors
	}
	fr, err := g.write(AllFilename, Variables(colors)+"\n"+strings.Join(rules, "\n"), total)
	if err != nil {
		return res, err
	}
	res.Files = append(res.Files, fr)
	logger.Info("Successfully created CSS file", zap.String("file", fr.Name), zap.Int("selectors", fr.Selectors))
	return res, nil
}

func (g *Generator) buildGroup(ctx context.Context, grp Group, logger *zap.Logger) (groupCSS, []string, error) {
	limit := g.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	titles := make([][]string, len(grp.Categories))
	errs := make([]error, len(grp.Categories))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, cat := range grp.Categories {
		eg.Go(func() error {
			t, err := g.Fetcher.Members(ctx, cat)
			titles[i], errs[i] = t, err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return groupCSS{}, nil, fmt.Errorf("fetch %s: %w", grp.Name, err)
	}

	out := groupCSS{group: grp, rules: make([]string, 0, len(grp.Categories))}
	var failed []string
	for i, cat := range grp.Categories {
		if errs[i] != nil {
			logger.Warn("Using partial category listing", zap.String("category", cat), zap.Error(errs[i]))
			failed = append(failed, cat)
		}
		sel := Selectors(titles[i])
		out.selectors += len(sel)
		out.rules = append(out.rules, Rules(g.Config.WikiURL, grp.LinkColor.Key, cat, sel))
	}
	return out, failed, nil
}

func (g *Generator) write(name, content string, selectors int) (FileResult, error) {
	if _, err := parser.Parse(content); err != nil {
		return FileResult{}, fmt.Errorf("verify %s: %w", name, err)
	}
	path := filepath.Join(g.OutDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return FileResult{}, fmt.Errorf("write %s: %w", name, err)
	}
	return FileResult{Name: name, Path: path, Selectors: selectors, Bytes: len(content)}, nil
}
