package workshop

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemDescriptor identifies a resolved workshop item.
// Immutable once returned by the resolver.
type ItemDescriptor struct {
	ID         uint64
	Title      string
	OwnerAppID uint64
}

func (d ItemDescriptor) String() string {
	return fmt.Sprintf("%q (%d)", d.Title, d.ID)
}

// InstallInfo describes where an item lives on disk.
type InstallInfo struct {
	Path      string
	SizeBytes uint64
}

// Progress is a single download progress sample.
type Progress struct {
	BytesDownloaded uint64
	TotalBytes      uint64
}

// ResultCode is the service's failure code for a completion.
// The zero value means the completion carries no error.
//
// Non-zero values follow the Steam EResult numbering so codes read the same
// in logs as they do in the Steam client.
type ResultCode int

const (
	ResultNone          ResultCode = 0
	ResultFail          ResultCode = 2
	ResultNoConnection  ResultCode = 3
	ResultFileNotFound  ResultCode = 9
	ResultAccessDenied  ResultCode = 15
	ResultTimeout       ResultCode = 16
	ResultDiskFull      ResultCode = 44
	ResultRemoteDisconn ResultCode = 84
)

var resultNames = map[ResultCode]string{
	ResultNone:          "none",
	ResultFail:          "fail",
	ResultNoConnection:  "no_connection",
	ResultFileNotFound:  "file_not_found",
	ResultAccessDenied:  "access_denied",
	ResultTimeout:       "timeout",
	ResultDiskFull:      "disk_full",
	ResultRemoteDisconn: "remote_disconnect",
}

func (c ResultCode) String() string {
	if name, ok := resultNames[c]; ok {
		return name
	}
	return fmt.Sprintf("result(%d)", int(c))
}

// ParseResultCode maps a name produced by String back to its code.
// A bare integer is accepted for codes without a name.
func ParseResultCode(name string) (ResultCode, error) {
	for code, n := range resultNames {
		if n == name {
			return code, nil
		}
	}
	if v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "result("), ")")); err == nil {
		return ResultCode(v), nil
	}
	return 0, fmt.Errorf("unknown result code %q", name)
}

// CompletionSignal is the normalized payload of both completion paths:
// the direct install check and the asynchronous completion callback.
type CompletionSignal struct {
	ItemID uint64
	AppID  uint64
	Result ResultCode
}

// Failed reports whether the signal carries an error.
func (s CompletionSignal) Failed() bool {
	return s.Result != ResultNone
}
