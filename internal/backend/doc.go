// Package backend manages the upstream clusters the gateway proxies to.
//
// A Cluster is a named set of base URLs served round-robin over a shared,
// pooled http.Transport. When a cluster enables its circuit breaker the
// transport is wrapped so consecutive failures open the circuit and further
// calls fail fast with util.ErrCircuitOpen:
//
//	reg, err := backend.NewRegistry(cfg.Clusters, backend.WithMetrics(m))
//	cluster, ok := reg.Get("identity")
//	target := cluster.Next()
//	resp, err := cluster.Transport().RoundTrip(req)
package backend
