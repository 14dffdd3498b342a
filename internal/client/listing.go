package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sharetube/whiteboard/internal/domain"
)

// ErrListUnavailable means the listing could not be fetched. It is distinct
// from an empty result.
var ErrListUnavailable = errors.New("snapshot listing unavailable")

// ListSnapshots fetches saved snapshots newest first. An empty roomKey lists
// every room.
func ListSnapshots(ctx context.Context, httpClient *http.Client, baseURL, roomKey string) ([]domain.SnapshotInfo, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListUnavailable, err)
	}
	u = u.JoinPath("api", "v1", "whiteboards")
	if roomKey != "" {
		u.RawQuery = url.Values{"room": {roomKey}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListUnavailable, err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrListUnavailable, resp.StatusCode)
	}

	infos := make([]domain.SnapshotInfo, 0)
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListUnavailable, err)
	}

	return infos, nil
}
