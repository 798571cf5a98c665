package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	formatter.Statusf("ignored in json mode")
	err := formatter.Success("run-1", map[string]string{"path": "/w"}, "installed")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("", "QUERY_ERROR", "query returned no results", map[string]uint64{"item_id": 7})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "QUERY_ERROR", resp.Error.Code)
	assert.Equal(t, "query returned no results", resp.Error.Message)
	assert.Empty(t, resp.RunID)
}

func TestOutputFormatter_TextOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    buf,
		ErrWriter: errBuf,
		Verbose:   true,
	}

	formatter.Statusf("downloading item %d (%d%%)", 7, 42)
	require.NoError(t, formatter.Success("run-1", nil, "installed Map at /w"))
	require.NoError(t, formatter.Error("run-1", "DOWNLOAD_FAILED", "download failed", "result=timeout"))

	assert.Equal(t,
		"[steam-workshop-downloader] downloading item 7 (42%)\n"+
			"[steam-workshop-downloader] installed Map at /w\n"+
			"[steam-workshop-downloader] error [DOWNLOAD_FAILED]: download failed\n",
		buf.String())
	assert.Equal(t, "Details: result=timeout\n", errBuf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	formatter.VerboseLog("hidden")
	assert.Empty(t, buf.String())

	formatter.Verbose = true
	formatter.VerboseLog("shown %d", 1)
	assert.Equal(t, "shown 1\n", buf.String(), "falls back to Writer")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitAborted, "abort", errors.New("boom")))
	assert.Equal(t, ExitAborted, GetExitCode(wrapped))
	assert.Equal(t, "outer: abort: boom", wrapped.Error())
}
