package acquire

import (
	"math/bits"

	"github.com/roach88/workshopdl/internal/workshop"
)

// PollStatus is the result of a poller tick.
type PollStatus int

const (
	// PollContinue means the download is still in progress.
	PollContinue PollStatus = iota
	// PollComplete means bytesDownloaded reached totalBytes.
	PollComplete
	// PollLost means the service stopped tracking the item.
	PollLost
)

func (s PollStatus) String() string {
	switch s {
	case PollContinue:
		return "continue"
	case PollComplete:
		return "complete"
	case PollLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Sample is a progress reading with its reported percentage.
type Sample struct {
	BytesDownloaded uint64
	TotalBytes      uint64
	Percent         int
}

// Percent returns floor(done*100/total) clamped to [0, 100].
// The product is formed in 128 bits before dividing, so neither small
// ratios nor large byte counts collapse to 0 or 1.
// Returns 0 when total is 0 (size not yet known).
func Percent(done, total uint64) int {
	if total == 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	hi, lo := bits.Mul64(done, 100)
	q, _ := bits.Div64(hi, lo, total)
	return int(q)
}

// Poller samples download progress for one item.
//
// It never declares the download finished: PollComplete and PollLost only
// stop sampling. Success is certified by the completion dispatcher alone.
type Poller struct {
	session     workshop.Session
	itemID      uint64
	lastPercent int
	samples     int
	status      PollStatus
	stopped     bool
}

// NewPoller creates a poller for itemID.
func NewPoller(session workshop.Session, itemID uint64) *Poller {
	return &Poller{session: session, itemID: itemID}
}

// Tick takes one sample. After the poller stops, Tick returns the final
// status without consulting the session.
//
// A size of 0 means the service has not reported the size yet; sampling
// continues until a positive total is reached.
func (p *Poller) Tick() (Sample, PollStatus) {
	if p.stopped {
		return Sample{Percent: p.lastPercent}, p.status
	}

	progress, ok := p.session.DownloadProgress(p.itemID)
	if !ok {
		p.stop(PollLost)
		return Sample{Percent: p.lastPercent}, PollLost
	}
	p.samples++

	// Reported percent never moves backwards, even if the service does.
	pct := Percent(progress.BytesDownloaded, progress.TotalBytes)
	if pct < p.lastPercent {
		pct = p.lastPercent
	}
	p.lastPercent = pct

	sample := Sample{
		BytesDownloaded: progress.BytesDownloaded,
		TotalBytes:      progress.TotalBytes,
		Percent:         pct,
	}
	if progress.TotalBytes > 0 && progress.BytesDownloaded >= progress.TotalBytes {
		p.stop(PollComplete)
		return sample, PollComplete
	}
	return sample, PollContinue
}

func (p *Poller) stop(status PollStatus) {
	p.stopped = true
	p.status = status
}

// Stopped reports whether the poller has stopped sampling.
func (p *Poller) Stopped() bool {
	return p.stopped
}

// Samples returns the number of successful samples taken.
func (p *Poller) Samples() int {
	return p.samples
}
