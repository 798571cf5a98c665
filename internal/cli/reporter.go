package cli

import (
	"errors"
	"log/slog"

	"github.com/roach88/workshopdl/internal/acquire"
	"github.com/roach88/workshopdl/internal/workshop"
)

// acquireResult is the JSON payload of a finished run.
type acquireResult struct {
	ItemID uint64 `json:"item_id"`
	AppID  uint64 `json:"app_id"`
	Title  string `json:"title"`
	Path   string `json:"path"`
	Via    string `json:"via"`
}

type failureDetails struct {
	ItemID uint64 `json:"item_id,omitempty"`
	Via    string `json:"via,omitempty"`
	Result string `json:"result,omitempty"`
}

// outputReporter renders acquisition status through an OutputFormatter.
//
// Progress lines are printed when the percentage changes, not on every tick.
type outputReporter struct {
	out    *OutputFormatter
	logger *slog.Logger
	runID  string

	lastPercent int
}

var _ acquire.Reporter = (*outputReporter)(nil)

func newOutputReporter(out *OutputFormatter, logger *slog.Logger) *outputReporter {
	return &outputReporter{out: out, logger: logger, lastPercent: -1}
}

func (r *outputReporter) Status(format string, args ...any) {
	r.out.Statusf(format, args...)
}

func (r *outputReporter) Progress(item workshop.ItemDescriptor, s acquire.Sample) {
	r.logger.Debug("progress", "item_id", item.ID, "bytes", s.BytesDownloaded, "total", s.TotalBytes, "percent", s.Percent)
	if s.Percent == r.lastPercent {
		return
	}
	r.lastPercent = s.Percent
	r.out.Statusf("downloading item %d (%d%%)", item.ID, s.Percent)
}

func (r *outputReporter) Outcome(o acquire.Outcome) {
	if o.Succeeded() {
		_ = r.out.Success(r.runID, acquireResult{
			ItemID: o.Item.ID,
			AppID:  o.Item.OwnerAppID,
			Title:  o.Item.Title,
			Path:   o.State.Path,
			Via:    string(o.Via),
		}, "installed "+o.Item.Title+" at "+o.State.Path)
		return
	}

	details := failureDetails{ItemID: o.Item.ID, Via: string(o.Via)}
	var ae *acquire.Error
	if errors.As(o.Err(), &ae) && ae.Code == acquire.ErrCodeDownloadFailed {
		details.Result = ae.Result.String()
	}
	r.failure(o.Err(), details)
}

// failure reports err, which may come from outside a run (parse, session, query).
func (r *outputReporter) failure(err error, details any) {
	code := "ERROR"
	if c, ok := acquire.CodeOf(err); ok {
		code = string(c)
	}
	_ = r.out.Error(r.runID, code, errorMessage(err), details)
}

// errorMessage strips the code prefix already shown in the code field.
func errorMessage(err error) string {
	var ae *acquire.Error
	if !errors.As(err, &ae) {
		return err.Error()
	}
	msg := ae.Message
	if ae.Err != nil {
		msg += ": " + ae.Err.Error()
	}
	return msg
}
