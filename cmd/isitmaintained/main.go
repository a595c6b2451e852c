package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/alecthomas/kong"

	"github.com/ericfisherdev/isitmaintained/internal/config"
)

// CLI is the command line of the isitmaintained binary.
type CLI struct {
	EnvFile string `help:"Optional .env file seeding ISITMAINTAINED_ variables." default:".env" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging."`

	Stats struct {
		Update statsUpdateCmd `cmd:"" help:"Refresh the cached statistics of the least recently updated repository."`
		Show   statsShowCmd   `cmd:"" help:"Print the statistics of a repository, computing them if not cached."`
	} `cmd:"" help:"Manage cached repository statistics."`

	Repo struct {
		Add    repoAddCmd    `cmd:"" help:"Start tracking a repository."`
		Remove repoRemoveCmd `cmd:"" help:"Stop tracking a repository."`
		List   repoListCmd   `cmd:"" help:"List tracked repositories."`
	} `cmd:"" help:"Manage tracked repositories."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("isitmaintained"),
		kong.Description("Maintenance statistics for GitHub repositories."),
		kong.UsageOnError(),
	)

	if err := run(kctx, &cli); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(kctx *kong.Context, cli *CLI) error {
	// 1. Load configuration (.env first, real environment wins).
	if err := config.LoadDotEnv(cli.EnvFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 2. Setup logging.
	level := cfg.LogLevel
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Debug("config loaded",
		"db_path", cfg.DBPath,
		"lock_dir", cfg.LockDir,
		"issue_page_limit", cfg.IssuePageLimit,
		"github_token", cfg.HasGitHubToken(),
		"pushgateway", cfg.PushgatewayURL != "",
	)

	// 3. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Run the selected command.
	a := newApp(ctx, cfg, logger, os.Stdout)
	defer a.Close()

	return kctx.Run(a)
}
