package health

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/bizgw/internal/backend"
	"github.com/vyrodovalexey/bizgw/internal/cache"
)

const probeKey = "health:probe"

// CacheCheck reports the docs cache unhealthy when it cannot answer a
// lookup. A miss is a healthy answer.
func CacheCheck(c cache.Cache) CheckFunc {
	return func(ctx context.Context) Check {
		if _, err := c.Get(ctx, probeKey); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}
		return Check{Status: StatusHealthy}
	}
}

// ClustersCheck reports degraded while any cluster's circuit is open.
// An open circuit is a backend problem, so the gateway stays ready.
func ClustersCheck(reg *backend.Registry) CheckFunc {
	return func(context.Context) Check {
		var open []string
		for _, name := range reg.Names() {
			cl, ok := reg.Get(name)
			if ok && cl.BreakerState() == gobreaker.StateOpen {
				open = append(open, name)
			}
		}
		if len(open) > 0 {
			return Check{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("circuit open: %s", strings.Join(open, ",")),
			}
		}
		return Check{Status: StatusHealthy}
	}
}
