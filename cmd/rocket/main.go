package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/rocket/internal/config"
	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
	"git.home.luguber.info/inful/rocket/internal/history"
	"git.home.luguber.info/inful/rocket/internal/logfields"
	"git.home.luguber.info/inful/rocket/internal/notify"
	"git.home.luguber.info/inful/rocket/internal/project"
	"git.home.luguber.info/inful/rocket/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		CheckLinks bool `help:"Verify internal links in the generated site"`
	} `cmd:"" help:"Build the site once"`

	New struct {
		Name string `arg:"" help:"Project name (letters and digits only)"`
	} `cmd:"" help:"Scaffold a new project in a directory named after it"`

	Serve struct {
		Addr  string `help:"Listen address (overrides serve.addr)"`
		Watch bool   `short:"w" help:"Rebuild when content, theme, or config change"`
	} `cmd:"" help:"Build the site and serve it locally"`

	History struct {
		Limit int `short:"n" default:"10" help:"Number of builds to show"`
	} `cmd:"" help:"Show recent builds from the history store"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	errs := rerrors.NewCLIErrorAdapter(CLI.Verbose, logger)

	switch ctx.Command() {
	case "build":
		errs.HandleError(runBuild(logger))
	case "new <name>":
		errs.HandleError(runNew(".", CLI.New.Name, logger))
	case "serve":
		errs.HandleError(runServe(logger))
	case "history":
		errs.HandleError(runHistory())
	case "version":
		fmt.Printf("rocket %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
}

func runBuild(logger *slog.Logger) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pub *notify.Publisher
	if cfg.Notifications.Enabled {
		p, cerr := notify.Connect(cfg.Notifications.URL, cfg.Notifications.Subject, logger)
		if cerr != nil {
			logger.Warn("build notifications unavailable", logfields.Error(cerr))
		} else {
			pub = p
			defer pub.Close()
		}
	}

	builder := project.NewBuilder(project.Options{
		Config:     cfg,
		Logger:     logger,
		CheckLinks: CLI.Build.CheckLinks,
	})
	report, err := builder.Build(ctx)
	afterBuild(ctx, cfg, report, pub, logger)
	if err != nil {
		return err
	}

	fmt.Println(report.Summary())
	return nil
}

// afterBuild runs the side effects of a finished build. All of them are
// best-effort: a dead sidecar must never turn a good build into a failure.
func afterBuild(ctx context.Context, cfg *config.Config, report *project.BuildReport, pub *notify.Publisher, logger *slog.Logger) {
	if report == nil {
		return
	}
	if cfg.History.Enabled {
		appendHistory(cfg.History.Path, report, logger)
	}
	if pub != nil {
		if err := pub.Publish(ctx, report); err != nil {
			logger.Warn("failed to publish build report", logfields.Error(err))
		}
	}
}

func appendHistory(path string, report *project.BuildReport, logger *slog.Logger) {
	store, err := history.Open(path)
	if err != nil {
		logger.Warn("failed to open history store", logfields.Error(err))
		return
	}
	defer store.Close()

	raw, err := json.Marshal(report)
	if err != nil {
		logger.Warn("failed to encode build report", logfields.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = store.Append(ctx, history.Record{
		ID:       report.ID,
		Started:  report.Start,
		Duration: report.Duration(),
		Pages:    report.Pages,
		Failed:   len(report.FailedPages),
		Outcome:  string(report.Outcome),
		Report:   raw,
	})
	if err != nil {
		logger.Warn("failed to record build history", logfields.Error(err))
	}
}

func runHistory() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return rerrors.New(rerrors.CategoryConfig, rerrors.SeverityError,
			"build history is disabled; set history.enabled in config.yaml")
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return rerrors.Wrap(err, rerrors.CategoryFileSystem, rerrors.SeverityError, "failed to open history store")
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	records, err := store.Recent(ctx, CLI.History.Limit)
	if err != nil {
		return rerrors.Wrap(err, rerrors.CategoryFileSystem, rerrors.SeverityError, "failed to read build history")
	}
	if len(records) == 0 {
		fmt.Println("No builds recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tPAGES\tFAILED\tOUTCOME\tID")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.Started.Local().Format("2006-01-02 15:04:05"),
			r.Duration.Round(time.Millisecond),
			r.Pages, r.Failed, r.Outcome, r.ID)
	}
	return w.Flush()
}
