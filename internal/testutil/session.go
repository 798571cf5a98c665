package testutil

import (
	"fmt"

	"github.com/roach88/workshopdl/internal/workshop"
)

// ProgressStep is one scripted answer to DownloadProgress.
type ProgressStep struct {
	Bytes uint64
	Total uint64
	// Lost makes DownloadProgress report that tracking has stopped.
	Lost bool
}

// ScheduledCompletion delivers Signal to the registered callbacks on the
// AfterPumps-th pump following the download request.
type ScheduledCompletion struct {
	AfterPumps int
	Signal     workshop.CompletionSignal
}

// ScheduledInstall makes ItemID installed at the start of the AfterPumps-th
// pump following the download request.
type ScheduledInstall struct {
	AfterPumps int
	ItemID     uint64
	Info       workshop.InstallInfo
}

// FakeSession is a scripted workshop.Session.
//
// Every asynchronous event is keyed on the number of Pump calls, so a test
// fully determines the interleaving of callback deliveries, installs and
// progress samples. Each call is appended to Trace for golden comparison.
//
// Thread-safety: none; like a real session it is used from one goroutine.
type FakeSession struct {
	App uint64

	// Query script.
	Entries    []*workshop.ItemDescriptor
	QueryErr   error
	QueryDelay int // extra pumps before the query result is delivered

	// Install and download script.
	Installed      map[uint64]workshop.InstallInfo
	AcceptDownload bool
	Progress       []ProgressStep // exhausted script reports tracking lost
	Completions    []ScheduledCompletion
	Installs       []ScheduledInstall

	// Observed calls.
	Trace             []string
	Pumps             int
	RequestCalls      int
	ProgressCalls     int
	InstallInfoCalls  int
	CallbacksNotified int
	Closed            bool

	requestPump int
	requested   bool
	query       *pendingQuery
	callbacks   []*fakeRegistration
}

var _ workshop.Session = (*FakeSession)(nil)

type pendingQuery struct {
	fn     workshop.QueryFunc
	atPump int
}

type fakeRegistration struct {
	session *FakeSession
	id      int
	fn      workshop.CompletionFunc
	active  bool
}

func (r *fakeRegistration) Unregister() {
	if !r.active {
		return
	}
	r.active = false
	r.session.tracef("unregister_callback id=%d", r.id)
}

// NewFakeSession creates a session for app with nothing installed.
func NewFakeSession(app uint64) *FakeSession {
	return &FakeSession{App: app, Installed: make(map[uint64]workshop.InstallInfo)}
}

func (s *FakeSession) tracef(format string, args ...any) {
	s.Trace = append(s.Trace, fmt.Sprintf(format, args...))
}

func (s *FakeSession) AppID() uint64 {
	return s.App
}

func (s *FakeSession) QueryItem(id uint64, includeMetadata bool, fn workshop.QueryFunc) {
	s.tracef("query_item id=%d metadata=%t", id, includeMetadata)
	s.query = &pendingQuery{fn: fn, atPump: s.Pumps + 1 + s.QueryDelay}
}

func (s *FakeSession) InstallInfo(id uint64) (workshop.InstallInfo, bool) {
	s.InstallInfoCalls++
	info, ok := s.Installed[id]
	if ok {
		s.tracef("install_info id=%d -> %s", id, info.Path)
	} else {
		s.tracef("install_info id=%d -> absent", id)
	}
	return info, ok
}

func (s *FakeSession) RequestDownload(id uint64, highPriority bool) bool {
	s.RequestCalls++
	s.tracef("request_download id=%d high_priority=%t -> %t", id, highPriority, s.AcceptDownload)
	if s.AcceptDownload {
		s.requested = true
		s.requestPump = s.Pumps
	}
	return s.AcceptDownload
}

func (s *FakeSession) DownloadProgress(id uint64) (workshop.Progress, bool) {
	idx := s.ProgressCalls
	s.ProgressCalls++
	if idx >= len(s.Progress) || s.Progress[idx].Lost {
		s.tracef("download_progress id=%d -> lost", id)
		return workshop.Progress{}, false
	}
	step := s.Progress[idx]
	s.tracef("download_progress id=%d -> %d/%d", id, step.Bytes, step.Total)
	return workshop.Progress{BytesDownloaded: step.Bytes, TotalBytes: step.Total}, true
}

func (s *FakeSession) RegisterCompletionCallback(fn workshop.CompletionFunc) workshop.Registration {
	reg := &fakeRegistration{session: s, id: len(s.callbacks) + 1, fn: fn, active: true}
	s.callbacks = append(s.callbacks, reg)
	s.tracef("register_callback id=%d", reg.id)
	return reg
}

// ActiveCallbacks returns the number of registered, not yet unregistered callbacks.
func (s *FakeSession) ActiveCallbacks() int {
	n := 0
	for _, r := range s.callbacks {
		if r.active {
			n++
		}
	}
	return n
}

func (s *FakeSession) Pump() {
	s.Pumps++
	s.tracef("pump %d", s.Pumps)

	if q := s.query; q != nil && s.Pumps >= q.atPump {
		s.query = nil
		s.tracef("deliver_query entries=%d", len(s.Entries))
		q.fn(s.Entries, s.QueryErr)
	}

	if !s.requested {
		return
	}
	n := s.Pumps - s.requestPump

	for _, in := range s.Installs {
		if in.AfterPumps == n {
			s.Installed[in.ItemID] = in.Info
			s.tracef("installed id=%d at %s", in.ItemID, in.Info.Path)
		}
	}

	for _, c := range s.Completions {
		if c.AfterPumps != n {
			continue
		}
		s.tracef("deliver_completion id=%d result=%s", c.Signal.ItemID, c.Signal.Result)
		for _, reg := range s.callbacks {
			if reg.active {
				s.CallbacksNotified++
				reg.fn(c.Signal)
			}
		}
	}
}

func (s *FakeSession) Close() error {
	s.Closed = true
	s.tracef("close")
	return nil
}
