// Package timesheet is a thin gateway to the downstream timesheet API. It
// attaches a bearer token to each call and propagates failures with the
// downstream error body attached; it holds no business logic of its own.
package timesheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkerhoas/outlook-relay/internal/apperrors"
)

const (
	defaultHTTPTimeout  = 15 * time.Second
	maxResponseBodySize = 1 << 20
)

// Entry is the payload for creating a time entry downstream.
type Entry struct {
	Subject   string   `json:"subject"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Attendees []string `json:"attendees"`
}

// CreatedEntry is the downstream API's response to a create call. ID may be
// empty when the API omits an identifier; the caller decides what to do
// about that.
type CreatedEntry struct {
	ID      string
	Details map[string]any
}

// Client calls the downstream timesheet API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a timesheet API client. A nil httpClient gets a bounded
// default so a hung downstream cannot leak requests.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CreateEntry creates a time entry downstream, authenticated as the user
// via the supplied access token.
func (c *Client) CreateEntry(ctx context.Context, accessToken string, entry Entry) (*CreatedEntry, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("[timesheet CreateEntry] failed to encode entry: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/entries", accessToken, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	details := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &details); err != nil {
			return nil, fmt.Errorf("%w: unparseable create response: %w", apperrors.ErrDownstreamAPI, err)
		}
	}

	created := &CreatedEntry{Details: details}
	if id, ok := details["id"].(string); ok {
		created.ID = id
	}

	return created, nil
}

// GetEntry fetches a time entry by its downstream identifier.
func (c *Client) GetEntry(ctx context.Context, accessToken, id string) (map[string]any, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/entries/"+id, accessToken, nil)
	if err != nil {
		return nil, err
	}

	entry := map[string]any{}
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("%w: unparseable entry response: %w", apperrors.ErrDownstreamAPI, err)
	}

	return entry, nil
}

func (c *Client) do(ctx context.Context, method, url, accessToken string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", apperrors.ErrDownstreamAPI, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDownstreamAPI, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", apperrors.ErrDownstreamAPI, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", apperrors.ErrDownstreamAPI, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
