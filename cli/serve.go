package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/web"
)

type ServeCmd struct {
	Host    string `help:"Host to listen on, overrides the settings file."`
	Port    int    `help:"Port to listen on, overrides the settings file."`
	Migrate bool   `help:"Create or update the database tables before serving." default:"true" negatable:""`
}

func (cmd *ServeCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, report := startTelemetry(runCtx, globals, ctx.Stderr, "serve")
	defer report()

	runCtx, a, err := openApp(runCtx, globals)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if cmd.Migrate {
		if err := a.store.Migrate(runCtx); err != nil {
			return err
		}
	}

	version := Version
	if version == "" {
		version = "dev"
	}
	commitSHA := CommitSHA
	if commitSHA == "" {
		commitSHA = "local"
	}

	server := web.New(a.engine, a.orders, a.hooks,
		web.WithLogger(a.logger.Named("web")),
		web.WithSettings(a.holder),
		web.WithVersion(version, commitSHA),
	)
	server.Host = a.settings.Server.Host
	server.Port = a.settings.Server.Port
	if cmd.Host != "" {
		server.Host = cmd.Host
	}
	if cmd.Port != 0 {
		server.Port = cmd.Port
	}

	if globals.Config != "" {
		watcher := config.NewWatcher(globals.Config, a.holder, a.logger, func(s *config.Settings) {
			a.resolver.Invalidate()
			server.Reloaded()
		})
		if err := watcher.Start(runCtx); err != nil {
			a.logger.Warn("settings will not be reloaded", zap.Error(err))
		} else {
			printInfof(ctx.Stdout, "Watching settings: %s", pathStyle.Render(globals.Config))
		}
	}

	printInfof(ctx.Stdout, "Starting server on %s:%d", server.Host, server.Port)
	printInfof(ctx.Stdout, "Database: %s", pathStyle.Render(a.settings.Database.Path))

	if err := server.Start(runCtx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	printSuccess(ctx.Stdout, "Server stopped")
	return nil
}
