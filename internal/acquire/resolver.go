package acquire

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/workshopdl/internal/workshop"
)

// Resolver turns an item id into a descriptor by querying the service.
type Resolver struct {
	session workshop.Session
	tick    time.Duration
	sleeper Sleeper
	logger  *slog.Logger
}

// NewResolver creates a resolver that pumps session every tick while waiting.
func NewResolver(session workshop.Session, tick time.Duration, sleeper Sleeper, logger *slog.Logger) *Resolver {
	if tick <= 0 {
		tick = DefaultTick
	}
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{session: session, tick: tick, sleeper: sleeper, logger: logger}
}

// Resolve issues a metadata query for id and selects the descriptor.
//
// The query result arrives on a later Pump; Resolve pumps on every tick until
// it does or ctx ends. A query failure is fatal and never retried.
func (r *Resolver) Resolve(ctx context.Context, id uint64) (workshop.ItemDescriptor, error) {
	var (
		arrived bool
		entries []*workshop.ItemDescriptor
		qerr    error
	)
	r.session.QueryItem(id, true, func(e []*workshop.ItemDescriptor, err error) {
		if arrived {
			return
		}
		arrived, entries, qerr = true, e, err
	})

	for ticks := 0; ; ticks++ {
		r.session.Pump()
		if arrived {
			r.logger.Debug("query result delivered", "item_id", id, "ticks", ticks, "entries", len(entries))
			break
		}
		if err := r.sleeper.Sleep(ctx, r.tick); err != nil {
			return workshop.ItemDescriptor{}, contextError(ctx, id)
		}
	}

	if qerr != nil {
		return workshop.ItemDescriptor{}, NewQueryError(id, "query failed", qerr)
	}
	return SelectItem(id, entries)
}

// SelectItem picks the first present entry, in response order, whose title
// is non-empty. Titles are NFC-normalized.
func SelectItem(id uint64, entries []*workshop.ItemDescriptor) (workshop.ItemDescriptor, error) {
	if len(entries) == 0 {
		return workshop.ItemDescriptor{}, NewQueryError(id, "query returned no results", nil)
	}
	for _, e := range entries {
		if e == nil {
			continue
		}
		title := norm.NFC.String(e.Title)
		if title == "" {
			continue
		}
		return workshop.ItemDescriptor{ID: e.ID, Title: title, OwnerAppID: e.OwnerAppID}, nil
	}
	return workshop.ItemDescriptor{}, NewQueryError(id, "query returned no item with a title", nil)
}
