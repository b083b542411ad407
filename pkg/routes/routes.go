// Package routes declares HTTP endpoints as nested groups and registers them
// on a ServeMux using method-qualified patterns.
package routes

import "net/http"

// Route binds an HTTP method and pattern to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Group organizes routes under a common prefix. Child prefixes are appended
// to the parent's.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Flatten returns every route in groups with its full pattern, parents first.
func Flatten(groups ...Group) []Route {
	var out []Route
	for _, g := range groups {
		out = flatten(out, "", g)
	}
	return out
}

func flatten(out []Route, parent string, g Group) []Route {
	prefix := parent + g.Prefix
	for _, r := range g.Routes {
		r.Pattern = prefix + r.Pattern
		out = append(out, r)
	}
	for _, child := range g.Children {
		out = flatten(out, prefix, child)
	}
	return out
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, r := range Flatten(groups...) {
		mux.HandleFunc(r.Method+" "+r.Pattern, r.Handler)
	}
}
