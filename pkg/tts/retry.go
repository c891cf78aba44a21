package tts

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// requester holds what the HTTP providers share for retried requests.
type requester struct {
	client     *http.Client
	logger     *slog.Logger
	provider   string
	maxRetries int
	retryDelay time.Duration
	parseError func(*http.Response) error
}

// do sends the request built by newReq, retrying transport errors, 429 and
// 5xx responses with linear backoff. The caller closes the returned body.
func (r *requester) do(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryDelay * time.Duration(attempt)):
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, WrapError(r.provider, err)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(r.provider, err)
			continue
		}

		if retryableStatus(resp.StatusCode) {
			lastErr = r.parseError(resp)
			resp.Body.Close()
			r.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}
