package slskd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/rymdl/rymdl/internal/model"
)

// maxStabilizeRounds bounds the search polling loop. The broker grows
// result sets incrementally with no completion signal; two identical
// consecutive snapshots count as stable.
const maxStabilizeRounds = 5

// Client wraps the slskd REST API.
//
// Client normalizes the broker's quirks so nothing above it has to
// care: mixed path separators, missing extension fields, and the
// "Completed, *" transfer state vocabulary.
//
// Example usage:
//
//	client, err := slskd.NewClient("http://localhost:5030", apiKey)
//	id, err := client.Search(ctx, "Radiohead OK Computer")
//	candidates, err := client.SearchStabilized(ctx, id)
type Client struct {
	host   string
	apiKey string
	httpc  *http.Client

	// SearchTimeout is the broker-side search duration.
	SearchTimeout time.Duration

	// PollDelay is the wait between stabilization rounds. Tests set
	// it to zero.
	PollDelay time.Duration
}

// NewClient creates an authenticated slskd API client.
//
// Returns ErrMissingAPIKey if the key is empty; the broker rejects
// unauthenticated requests and there is no point starting a batch.
func NewClient(host, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Client{
		host:   strings.TrimRight(host, "/"),
		apiKey: apiKey,
		httpc: &http.Client{
			Timeout: 60 * time.Second,
		},
		SearchTimeout: 30 * time.Second,
		PollDelay:     time.Second,
	}, nil
}

// TransferID identifies one enqueued file transfer.
type TransferID struct {
	Username string
	Path     string
}

// TransferStatus is the polled state of one transfer.
type TransferStatus struct {
	ID               TransferID
	State            model.TransferState
	BytesTransferred int64
}

// Search starts a broker search and returns its handle.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	payload := map[string]any{
		"searchText":    query,
		"searchTimeout": c.SearchTimeout.Milliseconds(),
	}
	body, err := c.do(ctx, http.MethodPost, "/api/v0/searches", payload)
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		return "", &NetworkError{Op: "start search", Err: errors.New("no search id in response")}
	}
	return id, nil
}

// PollSearch fetches the current candidate set for a search. The set
// may grow between calls.
func (c *Client) PollSearch(ctx context.Context, id string) ([]model.Candidate, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v0/searches/"+id+"/responses", nil)
	if err != nil {
		return nil, err
	}

	var candidates []model.Candidate
	gjson.ParseBytes(body).ForEach(func(_, v gjson.Result) bool {
		cand := parseResponse(v)
		if len(cand.Files) > 0 {
			candidates = append(candidates, cand)
		}
		return true
	})
	return candidates, nil
}

// SearchStabilized polls a search until two consecutive rounds return
// an identical non-empty candidate set, or the round budget runs out.
// The last observed set is returned either way.
//
// Transient network failures consume a round instead of surfacing; the
// error is only returned when no round ever produced a snapshot.
func (c *Client) SearchStabilized(ctx context.Context, id string) ([]model.Candidate, error) {
	var (
		last    []model.Candidate
		lastKey string
		got     bool
		lastErr error
	)

	for round := 0; round < maxStabilizeRounds; round++ {
		if round > 0 {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(c.PollDelay):
			}
		}

		candidates, err := c.PollSearch(ctx, id)
		if err != nil {
			var nerr *NetworkError
			if errors.As(err, &nerr) {
				lastErr = err
				continue
			}
			return last, err
		}

		key := snapshotKey(candidates)
		if got && key == lastKey && len(candidates) > 0 {
			return candidates, nil
		}
		last, lastKey, got = candidates, key, true
	}

	if !got {
		return nil, lastErr
	}
	return last, nil
}

// Enqueue queues all files of a candidate for download and returns the
// synthesized transfer ids.
func (c *Client) Enqueue(ctx context.Context, cand model.Candidate) ([]TransferID, error) {
	payload := make([]map[string]any, len(cand.Files))
	ids := make([]TransferID, len(cand.Files))
	for i, f := range cand.Files {
		payload[i] = map[string]any{
			"filename": f.Name,
			"size":     f.Size,
		}
		ids[i] = TransferID{Username: cand.Username, Path: f.Name}
	}

	_, err := c.do(ctx, http.MethodPost, "/api/v0/transfers/downloads/"+cand.Username, payload)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// PollTransfers reports the current state of the given transfers.
//
// Transfers the broker does not list yet are reported as Enqueued.
func (c *Client) PollTransfers(ctx context.Context, ids []TransferID) ([]TransferStatus, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v0/transfers/downloads", nil)
	if err != nil {
		return nil, err
	}

	type seen struct {
		state model.TransferState
		bytes int64
	}
	known := make(map[TransferID]seen)
	gjson.ParseBytes(body).ForEach(func(_, user gjson.Result) bool {
		username := user.Get("username").String()
		user.Get("directories").ForEach(func(_, dir gjson.Result) bool {
			dir.Get("files").ForEach(func(_, f gjson.Result) bool {
				id := TransferID{
					Username: username,
					Path:     NormalizePath(f.Get("filename").String()),
				}
				known[id] = seen{
					state: model.MapBrokerState(f.Get("state").String()),
					bytes: f.Get("bytesTransferred").Int(),
				}
				return true
			})
			return true
		})
		return true
	})

	statuses := make([]TransferStatus, len(ids))
	for i, id := range ids {
		if s, ok := known[id]; ok {
			statuses[i] = TransferStatus{ID: id, State: s.state, BytesTransferred: s.bytes}
		} else {
			statuses[i] = TransferStatus{ID: id, State: model.StateEnqueued}
		}
	}
	return statuses, nil
}

// do performs one API exchange and classifies failures.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &NetworkError{
			Op:  method + " " + path,
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	return io.ReadAll(resp.Body)
}

// snapshotKey flattens a candidate set for snapshot comparison.
func snapshotKey(candidates []model.Candidate) string {
	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = c.Key()
	}
	// Discovery order is not part of identity.
	sort.Strings(keys)
	return strings.Join(keys, "\n")
}
