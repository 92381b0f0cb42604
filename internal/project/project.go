// Package project drives a full site build: scan content, evaluate every
// page, finalize the shared reference table, link and render through the
// theme, and verify the result. Page failures are isolated; shared-state
// ordering between the two passes is the one hard invariant.
package project

import (
	"context"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/rocket/internal/config"
	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
	"git.home.luguber.info/inful/rocket/internal/eval"
	"git.home.luguber.info/inful/rocket/internal/gitinfo"
	"git.home.luguber.info/inful/rocket/internal/linkcheck"
	"git.home.luguber.info/inful/rocket/internal/logfields"
	"git.home.luguber.info/inful/rocket/internal/markdown"
	"git.home.luguber.info/inful/rocket/internal/metrics"
	"git.home.luguber.info/inful/rocket/internal/page"
	"git.home.luguber.info/inful/rocket/internal/theme"
	"git.home.luguber.info/inful/rocket/internal/version"
)

const sourceExt = ".rocket"

// Options configures a Builder.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	// Metrics receives stage, page, and build observations.
	Metrics metrics.Recorder
	// CheckLinks forces output link verification regardless of the
	// config setting.
	CheckLinks bool
}

// Builder runs site builds for one project. It is cheap to construct and
// safe to reuse across watch-mode rebuilds; all per-build state lives in
// a buildState.
type Builder struct {
	cfg        *config.Config
	logger     *slog.Logger
	recorder   metrics.Recorder
	checkLinks bool
}

// NewBuilder wires a Builder from options. Config is required.
func NewBuilder(opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Builder{
		cfg:        opts.Config,
		logger:     logger,
		recorder:   recorder,
		checkLinks: opts.CheckLinks || opts.Config.CheckLinks,
	}
}

// buildState carries everything one build accumulates across stages.
type buildState struct {
	builder  *Builder
	report   *BuildReport
	eval     *eval.Evaluator
	theme    *theme.Engine
	git      *gitinfo.Repo
	pages    []*page.Page
	titles   map[page.Slug]string
	stageDir string
}

// Build runs the whole pipeline and returns the report. The returned
// error is non-nil only when the build as a whole failed; per-page
// problems surface in the report instead.
func (b *Builder) Build(ctx context.Context) (*BuildReport, error) {
	report := newBuildReport(uuid.NewString(), version.Version)
	b.logger.Info("starting build", logfields.BuildID(report.ID), "content", b.cfg.ContentDir, "output", b.cfg.Output)

	bs := &buildState{
		builder: b,
		report:  report,
		titles:  make(map[page.Slug]string),
	}

	finish := func(err error) (*BuildReport, error) {
		report.finish()
		report.deriveOutcome()
		b.recorder.ObserveBuildDuration(report.Duration())
		b.recorder.IncBuildOutcome(string(report.Outcome))
		b.logger.Info("build finished",
			logfields.BuildID(report.ID),
			logfields.Pages(report.Pages),
			logfields.Failed(len(report.FailedPages)),
			logfields.Outcome(string(report.Outcome)),
			logfields.DurationMS(float64(report.Duration().Milliseconds())))
		return report, err
	}

	engine, err := theme.Load(b.cfg.ThemeDir)
	if err != nil {
		report.addError(err.Error())
		return finish(err)
	}
	bs.theme = engine

	if b.cfg.GitInfo {
		if repo, ok := gitinfo.Open(b.cfg.ContentDir, b.logger); ok {
			bs.git = repo
		} else {
			b.logger.Warn("git_info enabled but no repository found", "dir", b.cfg.ContentDir)
		}
	}

	ev := eval.New(eval.Options{
		Markdown:   markdown.NewRenderer(b.cfg.SyntaxTheme),
		PrettyURLs: b.cfg.Pretty(),
		Logger:     b.logger,
		Metrics:    b.recorder,
	})
	eval.InstallPrelude(ev, b.cfg.Version)
	bs.eval = ev

	if err := bs.beginStaging(b.cfg.Output); err != nil {
		report.addError(err.Error())
		return finish(err)
	}

	stages := []stageDef{
		{"scan", stageScan},
		{"evaluate", stageEvaluate},
		{"finalize", stageFinalize},
		{"link", stageLink},
		{"verify_links", stageVerifyLinks},
	}
	if err := runStages(ctx, bs, stages); err != nil {
		bs.abortStaging()
		return finish(err)
	}

	if err := bs.finalizeStaging(b.cfg.Output); err != nil {
		bs.abortStaging()
		report.addError(err.Error())
		return finish(err)
	}

	if err := report.Persist(b.cfg.Output); err != nil {
		b.logger.Warn("failed to persist build report", logfields.Error(err))
	}
	return finish(nil)
}

// stageScan collects the project's source pages in deterministic order.
func stageScan(_ context.Context, bs *buildState) error {
	cfg := bs.builder.cfg

	info, err := os.Stat(cfg.ContentDir)
	if err != nil || !info.IsDir() {
		return rerrors.New(rerrors.CategoryFileSystem, rerrors.SeverityFatal, "content directory not found").
			WithContext("dir", cfg.ContentDir)
	}

	var sources []string
	err = filepath.WalkDir(cfg.ContentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != cfg.ContentDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && filepath.Ext(path) == sourceExt {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return rerrors.FileSystemError("scan content directory", err)
	}
	sort.Strings(sources)

	for _, src := range sources {
		slug, err := page.SlugFromSource(cfg.ContentDir, src)
		if err != nil {
			bs.failPage(&page.Page{SourcePath: src}, "scan", err)
			continue
		}
		bs.pages = append(bs.pages, &page.Page{SourcePath: src, Slug: slug, State: page.StateFresh})
	}
	bs.report.Pages = len(bs.pages)

	if len(bs.pages) == 0 {
		return rerrors.New(rerrors.CategoryFileSystem, rerrors.SeverityWarning, "no source pages found").
			WithContext("dir", cfg.ContentDir)
	}
	return nil
}

// stageEvaluate runs pass 1 over every page. Failures skip the page and
// keep the build going.
func stageEvaluate(ctx context.Context, bs *buildState) error {
	for _, p := range bs.pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		bs.evaluatePage(p)
	}
	return nil
}

func (bs *buildState) evaluatePage(p *page.Page) {
	ev := bs.eval
	ev.Reset()
	ev.SetSlug(p.Slug)
	p.State = page.StateEvaluating

	root, err := ev.Parser().Parse(p.SourcePath)
	if err != nil {
		bs.failPage(p, "evaluate", err)
		return
	}

	// The parser wraps every file in an implicit md invocation, so one
	// Evaluate renders the whole document and records its title.
	body, err := ev.Evaluate(root)
	if err != nil {
		bs.failPage(p, "evaluate", err)
		return
	}

	p.Body = ev.SegmentBody(body)
	p.ThemeConfig = ev.ThemeConfig()
	p.State = page.StateEvaluated
	if title := p.Title(); title != "" {
		bs.titles[p.Slug] = title
	}
}

// stageFinalize closes the shared reference table and toctree. This is
// the barrier between the two passes: after it, no page may add refs and
// every page may resolve them.
func stageFinalize(_ context.Context, bs *buildState) error {
	bs.eval.Toctree().Finish(bs.titles)
	bs.eval.FinalizeRefs()
	return nil
}

// stageLink runs pass 2: substitute placeholders, render through the
// theme, and write each page into the staging tree.
func stageLink(ctx context.Context, bs *buildState) error {
	cfg := bs.builder.cfg
	pretty := cfg.Pretty()
	site := theme.SiteData{Title: cfg.Title, Version: cfg.Version, Constants: cfg.ThemeConstants}
	generated := theme.NewGeneratedData()

	for _, p := range bs.pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.State != page.StateEvaluated {
			continue
		}

		body, err := bs.eval.Substitute(p)
		if err != nil {
			bs.failPage(p, "link", err)
			continue
		}

		data := theme.PageData{
			Site:      site,
			Title:     p.Title(),
			Slug:      p.Slug.String(),
			Path:      p.Slug.URLPath(pretty),
			Body:      template.HTML(body),
			Toc:       template.HTML(bs.eval.Toctree().HTML(p.Slug, pretty)),
			Page:      bs.pageParams(p),
			Generated: generated,
		}

		name := p.ThemeConfig["template"]
		if name == "" {
			name = cfg.TemplateFor(p.Slug.String())
		}
		html, err := bs.theme.Render(name, data)
		if err != nil {
			bs.failPage(p, "link", err)
			continue
		}

		out := p.Slug.OutputPath(bs.stageDir, pretty)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			bs.failPage(p, "link", rerrors.FileSystemError("create output directory", err))
			continue
		}
		if err := os.WriteFile(out, []byte(html), 0o644); err != nil {
			bs.failPage(p, "link", rerrors.FileSystemError("write page", err))
			continue
		}

		bs.report.RenderedPages++
		bs.builder.recorder.IncPageResult(true)
		bs.builder.logger.Debug("page rendered", logfields.Slug(p.Slug.String()), logfields.Template(name))
	}

	return bs.copyStaticAssets()
}

// pageParams builds the template's .Page map: the page's theme config
// plus git metadata for keys the author did not set explicitly.
func (bs *buildState) pageParams(p *page.Page) map[string]string {
	params := make(map[string]string, len(p.ThemeConfig)+2)
	for k, v := range p.ThemeConfig {
		params[k] = v
	}
	if bs.git != nil {
		if info, ok := bs.git.FileInfo(p.SourcePath); ok {
			if _, set := params["lastmod"]; !set {
				params["lastmod"] = info.LastMod.UTC().Format("2006-01-02")
			}
			if _, set := params["git_commit"]; !set {
				params["git_commit"] = info.Commit
			}
		}
	}
	return params
}

// copyStaticAssets mirrors non-source files from the content tree and the
// theme's static directory into the staging tree.
func (bs *buildState) copyStaticAssets() error {
	cfg := bs.builder.cfg

	if err := copyTree(cfg.ContentDir, bs.stageDir, func(path string) bool {
		return filepath.Ext(path) != sourceExt
	}); err != nil {
		return rerrors.Wrap(err, rerrors.CategoryFileSystem, rerrors.SeverityWarning, "failed to copy content assets")
	}

	themeStatic := filepath.Join(cfg.ThemeDir, "static")
	if info, err := os.Stat(themeStatic); err == nil && info.IsDir() {
		if err := copyTree(themeStatic, bs.stageDir, func(string) bool { return true }); err != nil {
			return rerrors.Wrap(err, rerrors.CategoryFileSystem, rerrors.SeverityWarning, "failed to copy theme assets")
		}
	}
	return nil
}

// copyTree copies all regular files under src that pass the filter into
// dst, preserving relative paths. Hidden files and directories are
// skipped.
func copyTree(src, dst string, keep func(path string) bool) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != src {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !keep(path) {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		return copyFile(path, filepath.Join(dst, rel))
	})
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// stageVerifyLinks checks internal links in the staged output. Issues are
// warnings; they never fail the build.
func stageVerifyLinks(_ context.Context, bs *buildState) error {
	if !bs.builder.checkLinks {
		return nil
	}

	checker, err := linkcheck.New(bs.stageDir)
	if err != nil {
		return rerrors.Wrap(err, rerrors.CategoryFileSystem, rerrors.SeverityWarning, "link verification failed")
	}
	issues, err := checker.Check()
	if err != nil {
		return rerrors.Wrap(err, rerrors.CategoryFileSystem, rerrors.SeverityWarning, "link verification failed")
	}

	bs.report.LinkIssues = issues
	for _, issue := range issues {
		bs.builder.logger.Warn("dangling internal link",
			"page", issue.Page, "url", issue.URL, "target", issue.Target)
	}
	return nil
}

// failPage records a page-level failure and moves on. The page keeps its
// last state so later stages skip it.
func (bs *buildState) failPage(p *page.Page, phase string, err error) {
	bs.builder.logger.Error("page failed",
		logfields.Source(p.SourcePath),
		"phase", phase,
		logfields.Error(err))
	bs.report.addPageFailure(p.SourcePath, phase, err)
	bs.builder.recorder.IncPageResult(false)
}
