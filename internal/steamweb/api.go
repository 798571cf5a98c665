package steamweb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/workshopdl/internal/workshop"
)

const detailsPath = "/ISteamRemoteStorage/GetPublishedFileDetails/v1/"

// resultOK is the service's success result code.
const resultOK = 1

// flexUint64 accepts both JSON numbers and decimal strings; the Web API
// encodes 64-bit ids and sizes as strings.
type flexUint64 uint64

func (f *flexUint64) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("parse uint64 %q: %w", b, err)
	}
	*f = flexUint64(v)
	return nil
}

// fileDetails is one entry of a GetPublishedFileDetails response.
type fileDetails struct {
	PublishedFileID flexUint64 `json:"publishedfileid"`
	Result          int        `json:"result"`
	CreatorAppID    flexUint64 `json:"creator_app_id"`
	ConsumerAppID   flexUint64 `json:"consumer_app_id"`
	Filename        string     `json:"filename"`
	FileSize        flexUint64 `json:"file_size"`
	FileURL         string     `json:"file_url"`
	Title           string     `json:"title"`
}

type detailsResponse struct {
	Response struct {
		Result  int           `json:"result"`
		Count   int           `json:"resultcount"`
		Details []fileDetails `json:"publishedfiledetails"`
	} `json:"response"`
}

// descriptor converts d to an item descriptor, nil for a missing entry.
func (d fileDetails) descriptor() *workshop.ItemDescriptor {
	if d.Result != resultOK {
		return nil
	}
	return &workshop.ItemDescriptor{
		ID:         uint64(d.PublishedFileID),
		Title:      d.Title,
		OwnerAppID: uint64(d.ConsumerAppID),
	}
}

// fetchDetails queries the details of a single item.
func (s *Session) fetchDetails(ctx context.Context, id uint64) ([]fileDetails, error) {
	form := map[string]string{
		"itemcount":           "1",
		"publishedfileids[0]": strconv.FormatUint(id, 10),
	}

	req := s.client.R().SetContext(ctx).SetFormData(form)
	if s.cfg.APIKey != "" {
		req.SetQueryParam("key", s.cfg.APIKey)
	}
	resp, err := req.Post(detailsPath)
	if err != nil {
		return nil, fmt.Errorf("query item %d: %w", id, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("query item %d: status %d", id, resp.StatusCode())
	}

	var out detailsResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("query item %d: decode response: %w", id, err)
	}
	if out.Response.Result != resultOK {
		return nil, fmt.Errorf("query item %d: result %d", id, out.Response.Result)
	}
	return out.Response.Details, nil
}
