package steamweb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/roach88/workshopdl/internal/workshop"
)

// DefaultBaseURL is the public Steam Web API endpoint.
const DefaultBaseURL = "https://api.steampowered.com"

const queryTimeout = 30 * time.Second

var (
	ErrInvalidAppID       = errors.New("app id must be non-zero")
	ErrMissingWorkshopDir = errors.New("workshop directory is required")
)

// Config configures a Session.
type Config struct {
	AppID       uint64
	BaseURL     string
	APIKey      string
	WorkshopDir string
	Logger      *slog.Logger
}

// Session is a workshop.Session backed by the Steam Web API.
//
// Queries and downloads run on goroutines; their results are queued and
// handed to callers only from Pump, so every QueryFunc and CompletionFunc
// runs on the goroutine that pumps.
//
// Installed items live at <WorkshopDir>/<AppID>/<ItemID>. A download is
// staged in a hidden sibling directory and renamed into place before its
// completion is queued, so InstallInfo never reports a partial item.
type Session struct {
	cfg    Config
	client *resty.Client
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	events *eventQueue

	mu        sync.Mutex
	details   map[uint64]fileDetails
	downloads map[uint64]*download
	callbacks []*registration
	closed    bool
}

var _ workshop.Session = (*Session)(nil)

// Open initializes a session for cfg.AppID.
func Open(cfg Config) (*Session, error) {
	if cfg.AppID == 0 {
		return nil, ErrInvalidAppID
	}
	if cfg.WorkshopDir == "" {
		return nil, ErrMissingWorkshopDir
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	appDir := filepath.Join(cfg.WorkshopDir, strconv.FormatUint(cfg.AppID, 10))
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare workshop directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:       cfg,
		client:    resty.New().SetBaseURL(cfg.BaseURL).SetHeader("Accept", "application/json"),
		logger:    cfg.Logger.With("app_id", cfg.AppID),
		ctx:       ctx,
		cancel:    cancel,
		events:    newEventQueue(),
		details:   make(map[uint64]fileDetails),
		downloads: make(map[uint64]*download),
	}
	s.logger.Debug("session opened", "base_url", cfg.BaseURL, "workshop_dir", cfg.WorkshopDir)
	return s, nil
}

// AppID returns the application the session was opened for.
func (s *Session) AppID() uint64 {
	return s.cfg.AppID
}

// QueryItem fetches the item's details in the background.
// The Web API always returns full metadata, so includeMetadata only
// affects logging.
func (s *Session) QueryItem(id uint64, includeMetadata bool, fn workshop.QueryFunc) {
	s.logger.Debug("query item", "item_id", id, "metadata", includeMetadata)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, queryTimeout)
		defer cancel()

		details, err := s.fetchDetails(ctx, id)
		var entries []*workshop.ItemDescriptor
		if err == nil {
			s.mu.Lock()
			for _, d := range details {
				entries = append(entries, d.descriptor())
				if d.Result == resultOK {
					s.details[uint64(d.PublishedFileID)] = d
				}
			}
			s.mu.Unlock()
		}
		s.events.Enqueue(event{kind: eventQuery, fn: fn, entries: entries, err: err})
	}()
}

// InstallInfo reports the item's install directory and total size on disk.
func (s *Session) InstallInfo(id uint64) (workshop.InstallInfo, bool) {
	dir := s.installDir(id)
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return workshop.InstallInfo{}, false
	}

	var size uint64
	err = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += uint64(info.Size())
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to size install", "item_id", id, "error", err)
		return workshop.InstallInfo{}, false
	}
	return workshop.InstallInfo{Path: dir, SizeBytes: size}, true
}

// RequestDownload starts downloading the item's file.
//
// Returns false if the session is closed, the item belongs to another app,
// or the item has no downloadable file. A download already in flight is
// accepted without starting a second one. Details are fetched first when
// the item was never queried.
func (s *Session) RequestDownload(id uint64, highPriority bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if _, ok := s.downloads[id]; ok {
		return true
	}

	d, known := s.details[id]
	if known {
		if d.FileURL == "" {
			s.logger.Warn("item has no downloadable file", "item_id", id)
			return false
		}
		if !s.ownsItem(d) {
			s.logger.Warn("item belongs to another app", "item_id", id, "item_app_id", uint64(d.ConsumerAppID))
			return false
		}
	}

	dl := newDownload(id, uint64(d.FileSize))
	s.downloads[id] = dl
	s.logger.Debug("download requested", "item_id", id, "high_priority", highPriority)

	s.wg.Add(1)
	go s.runDownload(dl, d, known)
	return true
}

// ownsItem reports whether d is published for the session's app.
// Details without a consumer app are accepted.
func (s *Session) ownsItem(d fileDetails) bool {
	return d.ConsumerAppID == 0 || uint64(d.ConsumerAppID) == s.cfg.AppID
}

// DownloadProgress reports bytes received for an in-flight download.
// Returns false when no download for id is in flight.
func (s *Session) DownloadProgress(id uint64) (workshop.Progress, bool) {
	s.mu.Lock()
	dl, ok := s.downloads[id]
	s.mu.Unlock()
	if !ok {
		return workshop.Progress{}, false
	}
	return dl.progress(), true
}

// RegisterCompletionCallback adds fn to the completion callbacks.
func (s *Session) RegisterCompletionCallback(fn workshop.CompletionFunc) workshop.Registration {
	r := &registration{session: s, fn: fn}
	s.mu.Lock()
	s.callbacks = append(s.callbacks, r)
	s.mu.Unlock()
	return r
}

// Pump delivers every queued notification on the calling goroutine.
func (s *Session) Pump() {
	for {
		ev, ok := s.events.TryDequeue()
		if !ok {
			return
		}
		switch ev.kind {
		case eventQuery:
			ev.fn(ev.entries, ev.err)
		case eventCompletion:
			s.mu.Lock()
			cbs := append([]*registration(nil), s.callbacks...)
			s.mu.Unlock()
			for _, r := range cbs {
				r.fn(ev.signal)
			}
		}
	}
}

// Close cancels in-flight work and waits for it to stop.
// Pending notifications are dropped. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.events.Close()
	s.logger.Debug("session closed")
	return nil
}

func (s *Session) appDir() string {
	return filepath.Join(s.cfg.WorkshopDir, strconv.FormatUint(s.cfg.AppID, 10))
}

func (s *Session) installDir(id uint64) string {
	return filepath.Join(s.appDir(), strconv.FormatUint(id, 10))
}

type registration struct {
	session *Session
	fn      workshop.CompletionFunc
}

// Unregister removes the callback. Idempotent.
func (r *registration) Unregister() {
	s := r.session
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cb := range s.callbacks {
		if cb == r {
			s.callbacks = append(s.callbacks[:i], s.callbacks[i+1:]...)
			return
		}
	}
}
