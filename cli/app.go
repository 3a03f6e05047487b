package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/accounts"
	"github.com/robinvdvleuten/contribute/components"
	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/contribution"
	"github.com/robinvdvleuten/contribute/ledger"
	"github.com/robinvdvleuten/contribute/logging"
	"github.com/robinvdvleuten/contribute/order"
	"github.com/robinvdvleuten/contribute/receipt"
	"github.com/robinvdvleuten/contribute/store"
	"github.com/robinvdvleuten/contribute/telemetry"
)

// app is the wired engine a command works with.
type app struct {
	settings *config.Settings
	holder   *config.Holder
	logger   *zap.Logger
	store    *store.Store
	resolver *accounts.Resolver
	recorder *ledger.Recorder
	hooks    *contribution.Hooks
	engine   *contribution.Engine
	orders   *order.Orchestrator
}

// loadSettings reads the settings file and applies the global overrides.
func loadSettings(globals *Globals) (*config.Settings, error) {
	settings, err := config.Load(globals.Config)
	if err != nil {
		return nil, err
	}
	if globals.Database != "" {
		settings.Database.Path = globals.Database
	}
	if globals.LogLevel != "" {
		settings.Log.Level = globals.LogLevel
	}
	return settings, nil
}

// openApp loads the settings, opens the database and wires the engine. The
// returned context carries the settings and the logger.
func openApp(ctx context.Context, globals *Globals) (context.Context, *app, error) {
	timer := telemetry.StartTimer(ctx, "cli.open")
	defer timer.End()

	settings, err := loadSettings(globals)
	if err != nil {
		return ctx, nil, err
	}

	logger, err := logging.New(settings.Log.Level, settings.Log.Format)
	if err != nil {
		return ctx, nil, err
	}

	storeTimer := timer.Child("store.open")
	s, err := store.Open(settings.Database.Path, store.WithLogger(logger.Named("store")))
	storeTimer.End()
	if err != nil {
		return ctx, nil, err
	}

	sender, err := receipt.NewSender(ctx, settings.Receipt, logger.Named("receipt"))
	if err != nil {
		_ = s.Close()
		return ctx, nil, fmt.Errorf("failed to configure receipts: %w", err)
	}

	resolver := accounts.NewResolver(s, accounts.WithTTL(settings.AccountCacheTTL), accounts.WithLogger(logger.Named("accounts")))
	recorder := ledger.New(s, resolver, ledger.WithLogger(logger.Named("ledger")))
	hooks := contribution.NewHooks(logger.Named("hooks"))
	engine := contribution.New(s, resolver, recorder,
		contribution.WithLogger(logger.Named("contribution")),
		contribution.WithHooks(hooks),
		contribution.WithComponents(components.New(s, components.WithLogger(logger.Named("components")))),
	)

	a := &app{
		settings: settings,
		holder:   config.NewHolder(settings),
		logger:   logger,
		store:    s,
		resolver: resolver,
		recorder: recorder,
		hooks:    hooks,
		engine:   engine,
		orders:   order.New(engine, order.WithLogger(logger.Named("order")), order.WithSender(sender)),
	}

	ctx = settings.WithContext(ctx)
	ctx = logging.WithContext(ctx, logger)
	return ctx, a, nil
}

// Close releases the database.
func (a *app) Close() error {
	_ = a.logger.Sync()
	return a.store.Close()
}
