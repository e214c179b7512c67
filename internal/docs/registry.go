// Package docs aggregates the OpenAPI documents of the backend services
// into gateway-relative documents: one per service and one merged catalog.
package docs

import "strings"

// Service is one backend whose API document the gateway republishes.
type Service struct {
	// Name is the display name and the schema prefix in the merged
	// document.
	Name string
	// Prefix is the gateway path prefix of the service.
	Prefix string
	// Cluster is the backend cluster serving the document.
	Cluster string
}

var defaultServices = []Service{
	{Name: "Identity", Prefix: "/api/identity", Cluster: "identity"},
	{Name: "Rate", Prefix: "/api/rate", Cluster: "rate"},
	{Name: "DataSource", Prefix: "/api/datasource", Cluster: "datasource"},
	{Name: "Rcp", Prefix: "/api/rcp", Cluster: "rcp"},
	{Name: "Cdr", Prefix: "/api/cdr", Cluster: "cdr"},
	{Name: "AnswerRule", Prefix: "/api/answerrule", Cluster: "answerrule"},
	{Name: "FinCosts", Prefix: "/api/fincosts", Cluster: "fincosts"},
	{Name: "Sales", Prefix: "/api/sales", Cluster: "sales"},
	{Name: "Jobs", Prefix: "/api/jobs", Cluster: "jobs"},
	{Name: "Projects", Prefix: "/api/projects", Cluster: "projects"},
}

// DefaultServices returns the built-in registry in publication order.
func DefaultServices() []Service {
	out := make([]Service, len(defaultServices))
	copy(out, defaultServices)
	return out
}

// lookup finds a service by case-insensitive name.
func lookup(services []Service, name string) (Service, bool) {
	for _, s := range services {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Service{}, false
}
