package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/workshopdl/internal/acquire"
	"github.com/roach88/workshopdl/internal/config"
	"github.com/roach88/workshopdl/internal/steamweb"
	"github.com/roach88/workshopdl/internal/store"
	"github.com/roach88/workshopdl/internal/workshop"
)

// openSteamWeb is the default SessionFactory.
func openSteamWeb(cfg *config.Config, logger *slog.Logger) (workshop.Session, error) {
	return steamweb.Open(steamweb.Config{
		AppID:       cfg.AppID,
		BaseURL:     cfg.APIBaseURL,
		APIKey:      cfg.APIKey,
		WorkshopDir: cfg.WorkshopDir,
		Logger:      logger,
	})
}

// runAcquire resolves the item named by args and drives it to a terminal
// outcome. Every failure is written through the formatter before returning.
func runAcquire(ctx context.Context, opts *RootOptions, args []string) error {
	cfg := opts.Config
	logger := opts.Logger
	reporter := newOutputReporter(opts.Output, logger)

	itemID, err := workshop.ParseItemID(args)
	if err != nil {
		return reportFailure(reporter, ExitCommandError, acquire.NewInputError(err), nil)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	openSession := opts.OpenSession
	if openSession == nil {
		openSession = openSteamWeb
	}
	session, err := openSession(cfg, logger)
	if err != nil {
		return reportFailure(reporter, ExitFailure, acquire.NewAuthError(err), nil)
	}
	handle := acquire.NewSessionHandle(session)
	defer func() {
		if err := handle.Close(); err != nil {
			logger.Error("error closing session", "error", err)
		}
	}()

	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = acquire.TimerSleeper{}
	}

	reporter.Status("waiting for item to be queried...")
	item, err := acquire.NewResolver(handle, cfg.Tick, sleeper, logger).Resolve(ctx, itemID)
	if err != nil {
		return reportFailure(reporter, ExitFailure, err, failureDetails{ItemID: itemID})
	}
	logger.Info("item resolved", "item_id", item.ID, "title", item.Title, "app_id", item.OwnerAppID)

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = acquire.UUIDv7Generator{}
	}
	runID := runIDs.Generate()
	reporter.runID = runID

	controllerOpts := []acquire.ControllerOption{
		acquire.WithSleeper(sleeper),
		acquire.WithReporter(reporter),
		acquire.WithLogger(logger),
	}
	if cfg.Journal != "" {
		journal, err := openJournal(ctx, cfg.Journal, runID, item, logger)
		if err != nil {
			return reportFailure(reporter, ExitCommandError, err, nil)
		}
		defer func() {
			if err := journal.Close(); err != nil {
				logger.Error("error closing journal", "error", err)
			}
		}()
		controllerOpts = append(controllerOpts, acquire.WithRecorder(journal))
	}

	out := acquire.NewController(handle, acquire.Options{
		RunID:                 runID,
		Tick:                  cfg.Tick,
		HighPriority:          cfg.HighPriority,
		RegisterBeforeRequest: cfg.RegisterBeforeRequest,
	}, controllerOpts...).Acquire(ctx, item)

	if !out.Succeeded() {
		return &ExitError{Code: ExitFailure, Message: "acquisition failed", Err: out.Err(), Reported: true}
	}
	return nil
}

func openJournal(ctx context.Context, path, runID string, item workshop.ItemDescriptor, logger *slog.Logger) (*store.Store, error) {
	journal, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	if err := journal.WriteRun(ctx, runID, item); err != nil {
		journal.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	logger.Debug("journal ready", "path", path, "run_id", runID)
	return journal, nil
}

// reportFailure writes err through the reporter and wraps it for the exit code.
func reportFailure(r *outputReporter, code int, err error, details any) error {
	r.failure(err, details)
	return &ExitError{Code: code, Message: "acquisition failed", Err: err, Reported: true}
}
