package backend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

// StateFunc observes breaker transitions. state is 0 closed, 1 half-open,
// 2 open.
type StateFunc func(cluster string, state int)

// breakerTransport counts transport errors and 5xx responses against the
// cluster's breaker. A 5xx response is still returned to the caller so the
// backend's error body reaches the client unchanged.
type breakerTransport struct {
	cluster string
	cb      *gobreaker.CircuitBreaker
	next    http.RoundTripper
}

func newBreakerTransport(
	cluster string,
	cfg *config.CircuitBreakerConfig,
	next http.RoundTripper,
	logger observability.Logger,
	onState StateFunc,
) *breakerTransport {
	threshold := clampUint32(cfg.FailureThreshold)
	halfOpen := clampUint32(cfg.HalfOpenRequests)
	if halfOpen == 0 {
		halfOpen = 1
	}

	settings := gobreaker.Settings{
		Name:        cluster,
		MaxRequests: halfOpen,
		Timeout:     cfg.Timeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller hanging up says nothing about the backend; a route
		// deadline does.
		IsSuccessful: func(err error) bool {
			return err == nil || (errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				observability.String("cluster", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			if onState != nil {
				onState(name, int(to))
			}
		},
	}

	return &breakerTransport{
		cluster: cluster,
		cb:      gobreaker.NewCircuitBreaker(settings),
		next:    next,
	}
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out, err := t.cb.Execute(func() (interface{}, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, util.DeadlineCause(req.Context(), err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, util.NewServerError(resp.StatusCode)
		}
		return resp, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("cluster %q: %w", t.cluster, util.ErrCircuitOpen)
	}
	var serverErr *util.ServerError
	if errors.As(err, &serverErr) {
		return out.(*http.Response), nil
	}
	if err != nil {
		return nil, err
	}
	return out.(*http.Response), nil
}

func (t *breakerTransport) state() gobreaker.State {
	return t.cb.State()
}

func clampUint32(n int) uint32 {
	if n <= 0 {
		return 0
	}
	if uint64(n) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
