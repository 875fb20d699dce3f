// Package railapi probes the e-ticket site's undocumented search endpoints
// over raw HTTP. There is no API contract; the client walks an ordered
// candidate list and settles on the first endpoint that answers with a
// recognizable structure.
package railapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/railsched/internal/booking"
)

// ErrTargetUnavailable marks one candidate endpoint as unreachable or
// answering with an unexpected structure. Recovered by falling to the next
// candidate; fatal only once every candidate is exhausted.
var ErrTargetUnavailable = errors.New("target unavailable")

const defaultUA = "Mozilla/5.0 (X11; Linux x86_64) railsched/1.0"

// Endpoint paths observed on different deployments of the booking front end.
var defaultCandidates = []string{
	"/v1d/web-api/search-trips",
	"/api/v1/trains/search",
	"/train/search",
}

type Client struct {
	hc         *http.Client
	base       string
	candidates []string
}

func New(baseURL string) *Client {
	return &Client{
		hc:         &http.Client{Timeout: 10 * time.Second},
		base:       strings.TrimRight(baseURL, "/"),
		candidates: defaultCandidates,
	}
}

// SearchReport says which candidate endpoint answered and what it listed.
type SearchReport struct {
	Endpoint     string
	Trains       []string
	TrainMatched bool // requested train present in the listing
}

// VerifySearch checks that a journey search for req can be answered at all,
// without driving a browser. Candidates are tried in order; per-candidate
// failures are swallowed and only total exhaustion is an error.
func (c *Client) VerifySearch(ctx context.Context, req booking.Request) (*SearchReport, error) {
	var lastErr error
	for _, ep := range c.candidates {
		rep, err := c.search(ctx, ep, req)
		if err != nil {
			if errors.Is(err, ErrTargetUnavailable) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return rep, nil
	}
	return nil, fmt.Errorf("all %d candidate endpoints exhausted: %w", len(c.candidates), lastErr)
}

type searchResponse struct {
	Data *struct {
		Trains []struct {
			TrainName string `json:"train_name"`
		} `json:"trains"`
	} `json:"data"`
}

func (c *Client) search(ctx context.Context, endpoint string, req booking.Request) (*SearchReport, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+endpoint, nil)
	if err != nil {
		return nil, err
	}
	q := hreq.URL.Query()
	q.Set("from_city", req.Origin)
	q.Set("to_city", req.Destination)
	q.Set("date_of_journey", req.TravelDate)
	q.Set("seat_class", req.TravelClass)
	q.Set("seats", strconv.Itoa(req.SeatCount))
	hreq.URL.RawQuery = q.Encode()
	hreq.Header.Set("user-agent", defaultUA)
	hreq.Header.Set("accept", "application/json")

	res, err := c.hc.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTargetUnavailable, endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status=%d", ErrTargetUnavailable, endpoint, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTargetUnavailable, endpoint, err)
	}
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil || sr.Data == nil {
		return nil, fmt.Errorf("%w: %s: unexpected response structure", ErrTargetUnavailable, endpoint)
	}

	rep := &SearchReport{Endpoint: endpoint}
	for _, t := range sr.Data.Trains {
		rep.Trains = append(rep.Trains, t.TrainName)
		if strings.Contains(strings.ToUpper(t.TrainName), strings.ToUpper(req.TrainName)) {
			rep.TrainMatched = true
		}
	}
	return rep, nil
}
