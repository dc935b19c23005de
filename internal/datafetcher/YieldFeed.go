/*
This file fetches protocol yields from an HTTP feed.

The feed answers GET <base>/yields with

	{"updated_at": 1700000000, "yields": [{"protocol": "ProtocolA", "yield_bps": 500}, ...]}

A response that is not 2xx, does not decode, or lists a protocol twice is rejected as a whole. An empty
list is passed through: deciding what no data means is up to the monitor.
*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/elys-network/yvm/internal/logger"
	"github.com/elys-network/yvm/internal/types"
)

var feedLogger = logger.GetForComponent("yield_feed")

var ErrInvalidYieldData = errors.New("invalid yield data received")
var ErrFeedUnavailable = errors.New("yield feed unavailable")

const (
	yieldsPath      = "/yields"
	MAX_RETRIES     = 2
	TIMEOUT_SECONDS = 10
)

// YieldFeedResponse is the wire format of the feed.
type YieldFeedResponse struct {
	UpdatedAt int64 `json:"updated_at"`
	Yields    []struct {
		Protocol string  `json:"protocol"`
		YieldBps *uint64 `json:"yield_bps"`
	} `json:"yields"`
}

// HTTPOracle reads yields from the feed at a base URL.
type HTTPOracle struct {
	client *resty.Client
}

// NewHTTPOracle returns an oracle for the feed at baseURL.
func NewHTTPOracle(baseURL string) (*HTTPOracle, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: empty base URL", ErrFeedUnavailable)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(TIMEOUT_SECONDS*time.Second).
		SetRetryCount(MAX_RETRIES).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= 500
		})

	return &HTTPOracle{client: client}, nil
}

// FetchYields performs one GET against the feed.
func (o *HTTPOracle) FetchYields(ctx context.Context) (map[types.ProtocolID]uint64, error) {
	var body YieldFeedResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetResult(&body).
		ForceContentType("application/json").
		Get(yieldsPath)
	if err != nil {
		feedLogger.Error().Err(err).Msg("Yield feed request failed")
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	if !resp.IsSuccess() {
		feedLogger.Error().Int("status", resp.StatusCode()).Str("body", truncate(resp.String(), 200)).Msg("Yield feed returned an error status")
		return nil, fmt.Errorf("%w: status %d", ErrFeedUnavailable, resp.StatusCode())
	}

	yields := make(map[types.ProtocolID]uint64, len(body.Yields))
	for i, entry := range body.Yields {
		protocol := types.ProtocolID(strings.TrimSpace(entry.Protocol))
		if err := protocol.ValidateQuoted(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidYieldData, i, err)
		}
		if entry.YieldBps == nil {
			return nil, fmt.Errorf("%w: entry %d (%s) has no yield", ErrInvalidYieldData, i, protocol)
		}
		if _, dup := yields[protocol]; dup {
			return nil, fmt.Errorf("%w: protocol %s listed twice", ErrInvalidYieldData, protocol)
		}
		yields[protocol] = *entry.YieldBps
	}

	feedLogger.Debug().
		Int("protocols", len(yields)).
		Int64("updatedAt", body.UpdatedAt).
		Msg("Fetched yields from feed")
	return yields, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
