package steamweb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/roach88/workshopdl/internal/workshop"
)

// download tracks an in-flight item download.
// Counters are written by the download goroutine and read by the poller.
type download struct {
	itemID uint64
	bytes  atomic.Uint64
	total  atomic.Uint64
}

func newDownload(itemID, total uint64) *download {
	d := &download{itemID: itemID}
	d.total.Store(total)
	return d
}

// Write counts received bytes.
func (d *download) Write(p []byte) (int, error) {
	d.bytes.Add(uint64(len(p)))
	return len(p), nil
}

func (d *download) progress() workshop.Progress {
	return workshop.Progress{BytesDownloaded: d.bytes.Load(), TotalBytes: d.total.Load()}
}

// runDownload fetches the item, moves it into place and queues the completion.
func (s *Session) runDownload(dl *download, details fileDetails, known bool) {
	defer s.wg.Done()

	result := s.fetchItem(dl, details, known)

	s.mu.Lock()
	delete(s.downloads, dl.itemID)
	s.mu.Unlock()

	logger := s.logger.With("item_id", dl.itemID)
	if result != workshop.ResultNone {
		logger.Warn("download failed", "result", result)
	} else {
		logger.Debug("download finished", "bytes", dl.bytes.Load())
	}
	s.events.Enqueue(event{
		kind:   eventCompletion,
		signal: workshop.CompletionSignal{ItemID: dl.itemID, AppID: s.cfg.AppID, Result: result},
	})
}

func (s *Session) fetchItem(dl *download, details fileDetails, known bool) workshop.ResultCode {
	if !known {
		list, err := s.fetchDetails(s.ctx, dl.itemID)
		if err != nil {
			s.logger.Warn("failed to fetch item details", "item_id", dl.itemID, "error", err)
			return resultForError(err)
		}
		if len(list) == 0 || list[0].Result != resultOK || list[0].FileURL == "" {
			return workshop.ResultFileNotFound
		}
		details = list[0]
		if !s.ownsItem(details) {
			s.logger.Warn("item belongs to another app", "item_id", dl.itemID, "item_app_id", uint64(details.ConsumerAppID))
			return workshop.ResultAccessDenied
		}
		if details.FileSize > 0 {
			dl.total.Store(uint64(details.FileSize))
		}
	}

	resp, err := s.client.R().
		SetContext(s.ctx).
		SetDoNotParseResponse(true).
		Get(details.FileURL)
	if err != nil {
		return resultForError(err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return resultForStatus(resp.StatusCode())
	}
	if dl.total.Load() == 0 && resp.RawResponse.ContentLength > 0 {
		dl.total.Store(uint64(resp.RawResponse.ContentLength))
	}

	if err := s.install(dl, details, body); err != nil {
		s.logger.Warn("failed to install item", "item_id", dl.itemID, "error", err)
		return resultForError(err)
	}
	return workshop.ResultNone
}

// install streams body into a staging directory and renames it into place.
func (s *Session) install(dl *download, details fileDetails, body io.Reader) error {
	id := strconv.FormatUint(dl.itemID, 10)
	staging := filepath.Join(s.appDir(), ".staging-"+id)
	if err := os.RemoveAll(staging); err != nil {
		return err
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	name := filepath.Base(filepath.FromSlash(details.Filename))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = id + ".bin"
	}

	f, err := os.Create(filepath.Join(staging, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, io.TeeReader(body, dl)); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	dst := s.installDir(dl.itemID)
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return os.Rename(staging, dst)
}

func resultForStatus(status int) workshop.ResultCode {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return workshop.ResultFileNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return workshop.ResultAccessDenied
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return workshop.ResultTimeout
	default:
		return workshop.ResultFail
	}
}

func resultForError(err error) workshop.ResultCode {
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ENOSPC):
		return workshop.ResultDiskFull
	case errors.Is(err, context.DeadlineExceeded):
		return workshop.ResultTimeout
	case errors.Is(err, context.Canceled):
		return workshop.ResultFail
	case errors.Is(err, io.ErrUnexpectedEOF):
		return workshop.ResultRemoteDisconn
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return workshop.ResultTimeout
		}
		return workshop.ResultNoConnection
	default:
		return workshop.ResultFail
	}
}
