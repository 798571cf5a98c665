package acquire

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/workshopdl/internal/workshop"
)

// Options configures a controller run.
type Options struct {
	// RunID correlates log lines and journal rows.
	RunID string

	// Tick is the pump/poll cadence. Default: DefaultTick.
	Tick time.Duration

	// Timeout bounds the whole acquisition. Zero means no deadline.
	Timeout time.Duration

	// HighPriority is passed to RequestDownload.
	HighPriority bool

	// RegisterBeforeRequest registers the completion callback before the
	// download request instead of right after it.
	RegisterBeforeRequest bool
}

// Controller runs the acquisition state machine for one item.
//
// Thread-safety: Acquire must be called from exactly one goroutine. The
// session is pumped from that goroutine, so completion callbacks run there
// too.
type Controller struct {
	session  *SessionHandle
	opts     Options
	sleeper  Sleeper
	clock    *Clock
	reporter Reporter
	recorder Recorder
	logger   *slog.Logger
}

// ControllerOption allows configuration of controller collaborators.
type ControllerOption func(*Controller)

// WithSleeper replaces the tick sleeper (tests use an instant sleeper).
func WithSleeper(s Sleeper) ControllerOption {
	return func(c *Controller) { c.sleeper = s }
}

// WithReporter sets the status/outcome reporter.
func WithReporter(r Reporter) ControllerOption {
	return func(c *Controller) { c.reporter = r }
}

// WithRecorder sets the journal recorder.
func WithRecorder(r Recorder) ControllerOption {
	return func(c *Controller) { c.recorder = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a controller over session.
func NewController(session *SessionHandle, opts Options, options ...ControllerOption) *Controller {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	c := &Controller{
		session:  session,
		opts:     opts,
		sleeper:  TimerSleeper{},
		clock:    NewClock(),
		reporter: nopReporter{},
		recorder: nopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Acquire drives item to a terminal outcome.
//
// The outcome is reported through the dispatcher exactly once; the returned
// value is the same outcome, for the caller's exit status. Acquire always
// unregisters its completion callback before returning.
func (c *Controller) Acquire(ctx context.Context, item workshop.ItemDescriptor) Outcome {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	logger := c.logger.With("run_id", c.opts.RunID, "item_id", item.ID)
	t := newTracker(ctx, c.opts.RunID, c.clock, c.recorder, logger)
	d := newDispatcher(c.session, item, t, c.reporter, logger)

	c.run(ctx, item, t, d, logger)

	out, _ := d.Outcome()
	return out
}

func (c *Controller) run(ctx context.Context, item workshop.ItemDescriptor, t *tracker, d *Dispatcher, logger *slog.Logger) {
	if ctx.Err() != nil {
		d.Abort(contextError(ctx, item.ID))
		return
	}

	// Short-circuit: an existing install completes the run without a request.
	if info, ok := c.session.InstallInfo(item.ID); ok {
		c.reporter.Status("found existing install of %s at %s", item.Title, info.Path)
		_ = t.advance(State{Phase: PhaseInstallFound, Path: info.Path})
		d.Dispatch(workshop.CompletionSignal{ItemID: item.ID, AppID: item.OwnerAppID}, ViaInstallCheck)
		return
	}

	var reg *callbackRegistration
	register := func() {
		reg = c.session.registerCallback(func(_ *SessionHandle, sig workshop.CompletionSignal) {
			d.Dispatch(sig, ViaCallback)
		})
		logger.Debug("completion callback registered", "refs", c.session.Refs())
	}
	defer func() { reg.Unregister() }()

	if c.opts.RegisterBeforeRequest {
		register()
	}
	if !c.session.RequestDownload(item.ID, c.opts.HighPriority) {
		d.Abort(NewDownloadRequestError(item.ID))
		return
	}
	if !c.opts.RegisterBeforeRequest {
		register()
	}

	_ = t.advance(State{Phase: PhaseDownloading})
	logger.Info("download requested", "title", item.Title, "high_priority", c.opts.HighPriority)

	poller := NewPoller(c.session, item.ID)
	awaitingInstall := false
	for {
		// Pump first: when both paths are ready on the same tick the callback wins.
		c.session.Pump()
		if d.Done() {
			return
		}

		if !poller.Stopped() {
			sample, status := poller.Tick()
			switch status {
			case PollContinue, PollComplete:
				c.reporter.Progress(item, sample)
				_ = t.advance(State{
					Phase:           PhaseDownloading,
					BytesDownloaded: sample.BytesDownloaded,
					TotalBytes:      sample.TotalBytes,
				})
				if status == PollComplete {
					logger.Debug("download reached total size, waiting for install", "bytes", sample.TotalBytes)
					awaitingInstall = true
				}
			case PollLost:
				logger.Info("service stopped tracking item, waiting for completion callback", "samples", poller.Samples())
			}
		}

		if awaitingInstall {
			if _, ok := c.session.InstallInfo(item.ID); ok {
				d.Dispatch(workshop.CompletionSignal{ItemID: item.ID, AppID: item.OwnerAppID}, ViaInstallCheck)
				return
			}
		}

		if err := c.sleeper.Sleep(ctx, c.opts.Tick); err != nil {
			d.Abort(contextError(ctx, item.ID))
			return
		}
	}
}
