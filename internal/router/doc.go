// Package router matches request paths against the gateway route table.
//
// Routes are keyed by path prefix. Matching is segment-aware and
// case-insensitive: /api/cdr matches /api/cdr and /api/CDR/calls but not
// /api/cdrx. The longest matching prefix wins. The table rejects duplicate
// prefixes when it is built, so a tie can never occur, and it is immutable
// afterwards, so lookups need no locking.
//
//	table, err := router.NewTable(cfg.Routes, router.WithPolicyCompiler(authz.Compile))
//	route, err := table.Match(r.URL.Path)
//	if errors.Is(err, router.ErrRouteNotFound) {
//	    // 404 route_not_found
//	}
package router
