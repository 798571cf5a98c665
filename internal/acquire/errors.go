package acquire

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/workshopdl/internal/workshop"
)

// Error is a fatal acquisition error.
//
// Every error ends the run: there is no retry and no partial recovery.
// The Code lets callers map the failure to an exit status or a JSON payload.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ItemID is the affected item, zero when unknown (input/auth errors).
	ItemID uint64

	// Result is the service failure code for DOWNLOAD_FAILED.
	Result workshop.ResultCode

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes acquisition errors.
type ErrorCode string

const (
	// ErrCodeInput indicates a malformed id or URL.
	ErrCodeInput ErrorCode = "INPUT_ERROR"

	// ErrCodeAuth indicates the session could not be initialized.
	ErrCodeAuth ErrorCode = "AUTH_ERROR"

	// ErrCodeQuery indicates a failed query or no qualifying result.
	ErrCodeQuery ErrorCode = "QUERY_ERROR"

	// ErrCodeDownloadRequest indicates the service rejected the download request.
	ErrCodeDownloadRequest ErrorCode = "DOWNLOAD_REQUEST_ERROR"

	// ErrCodeDownloadFailed indicates the completion callback reported a failure.
	ErrCodeDownloadFailed ErrorCode = "DOWNLOAD_FAILED"

	// ErrCodeInstallInfoMissing indicates a success signal without a resolvable install.
	ErrCodeInstallInfoMissing ErrorCode = "INSTALL_INFO_MISSING"

	// ErrCodeInterrupted indicates the run was stopped externally.
	ErrCodeInterrupted ErrorCode = "INTERRUPTED"

	// ErrCodeDeadline indicates the overall acquisition deadline passed.
	ErrCodeDeadline ErrorCode = "DEADLINE_EXCEEDED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.ItemID != 0 {
		msg = fmt.Sprintf("%s (item=%d)", msg, e.ItemID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// NewInputError wraps a parse failure of the item id or URL.
func NewInputError(err error) *Error {
	return &Error{Code: ErrCodeInput, Message: "failed to parse item", Err: err}
}

// NewAuthError wraps a session initialization failure.
func NewAuthError(err error) *Error {
	return &Error{Code: ErrCodeAuth, Message: "failed to initialize session", Err: err}
}

// NewQueryError reports a failed query or a query without a usable entry.
func NewQueryError(itemID uint64, message string, err error) *Error {
	return &Error{Code: ErrCodeQuery, Message: message, ItemID: itemID, Err: err}
}

// NewDownloadRequestError reports a rejected download request.
func NewDownloadRequestError(itemID uint64) *Error {
	return &Error{Code: ErrCodeDownloadRequest, Message: "failed to download item", ItemID: itemID}
}

// NewDownloadFailedError reports a failure delivered by the completion callback.
func NewDownloadFailedError(itemID uint64, result workshop.ResultCode) *Error {
	return &Error{
		Code:    ErrCodeDownloadFailed,
		Message: fmt.Sprintf("download failed with result %s", result),
		ItemID:  itemID,
		Result:  result,
	}
}

// NewInstallInfoMissingError reports a success signal without install info.
func NewInstallInfoMissingError(itemID uint64) *Error {
	return &Error{Code: ErrCodeInstallInfoMissing, Message: "item reported complete but install info is missing", ItemID: itemID}
}

// contextError converts a finished context into an interrupt or deadline error.
func contextError(ctx context.Context, itemID uint64) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Code: ErrCodeDeadline, Message: "acquisition deadline exceeded", ItemID: itemID, Err: ctx.Err()}
	}
	return &Error{Code: ErrCodeInterrupted, Message: "acquisition interrupted", ItemID: itemID, Err: ctx.Err()}
}
