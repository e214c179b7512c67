package docs

import (
	"sort"
	"strings"
)

// Document is a decoded OpenAPI 3 or Swagger 2 document.
type Document map[string]any

const (
	apiRoot     = "/api/"
	titleSuffix = " (via Gateway)"

	refComponents  = "#/components/schemas/"
	refDefinitions = "#/definitions/"
)

// Paths returns the paths object, or nil when the document has none.
func (d Document) Paths() map[string]any {
	p, _ := d["paths"].(map[string]any)
	return p
}

// Title returns info.title.
func (d Document) Title() string {
	info, _ := d["info"].(map[string]any)
	t, _ := info["title"].(string)
	return t
}

// Schemas returns the named schemas of either document flavour.
func (d Document) Schemas() map[string]any {
	if comps, ok := d["components"].(map[string]any); ok {
		if s, ok := comps["schemas"].(map[string]any); ok {
			return s
		}
	}
	s, _ := d["definitions"].(map[string]any)
	return s
}

// valid reports whether d looks like an API document at all.
func (d Document) valid() bool {
	_, oas3 := d["openapi"].(string)
	_, oas2 := d["swagger"].(string)
	return oas3 || oas2
}

// GatewayPath maps a backend path key onto the gateway: the generic /api/
// root is replaced by prefix, any other key is prefixed wholesale.
func GatewayPath(prefix, key string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if strings.HasPrefix(key, apiRoot) {
		return prefix + key[len(apiRoot)-1:]
	}
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	return prefix + key
}

// rewriteForGateway returns a copy of doc with gateway-relative paths and
// a "(via Gateway)" title. Schemas are untouched.
func rewriteForGateway(doc Document, svc Service) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}

	if paths := doc.Paths(); paths != nil {
		rewritten := make(map[string]any, len(paths))
		for _, key := range sortedKeys(paths) {
			rewritten[GatewayPath(svc.Prefix, key)] = paths[key]
		}
		out["paths"] = rewritten
	}

	info := map[string]any{}
	if orig, ok := doc["info"].(map[string]any); ok {
		for k, v := range orig {
			info[k] = v
		}
	}
	title, _ := info["title"].(string)
	if title == "" {
		title = svc.Name
	}
	if !strings.HasSuffix(title, titleSuffix) {
		title += titleSuffix
	}
	info["title"] = title
	out["info"] = info

	if _, ok := doc["swagger"]; ok {
		// Swagger 2 paths are relative to basePath; the gateway prefix
		// already carries the full path.
		out["basePath"] = "/"
	}
	return out
}

// qualifyRefs returns a deep copy of v with every local schema $ref
// renamed to the {service}_{schema} form used in the merged document.
func qualifyRefs(v any, service string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if k == "$ref" {
				if ref, ok := val.(string); ok {
					out[k] = qualifyRef(ref, service)
					continue
				}
			}
			out[k] = qualifyRefs(val, service)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = qualifyRefs(val, service)
		}
		return out
	default:
		return v
	}
}

func qualifyRef(ref, service string) string {
	for _, root := range []string{refComponents, refDefinitions} {
		if name, ok := strings.CutPrefix(ref, root); ok {
			return refComponents + QualifiedSchemaName(service, name)
		}
	}
	return ref
}

// QualifiedSchemaName is the merged-document name of a service schema.
func QualifiedSchemaName(service, schema string) string {
	return service + "_" + schema
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
