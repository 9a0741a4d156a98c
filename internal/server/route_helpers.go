package server

import (
	"net/http"
	"sort"
	"strings"

	"github.com/ternarybob/assero/internal/handlers"
)

// methodRouter dispatches one route by HTTP method. Unsupported methods
// answer a JSON 405 with an Allow header naming what the route accepts.
type methodRouter map[string]http.HandlerFunc

func (m methodRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if handler, ok := m[r.Method]; ok {
		handler(w, r)
		return
	}

	methods := make([]string, 0, len(m))
	for method := range m {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	w.Header().Set("Allow", strings.Join(methods, ", "))
	handlers.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
