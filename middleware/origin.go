package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker builds the websocket upgrader's CheckOrigin. An empty list or
// "*" accepts everything; otherwise the Origin host must match an entry.
// Requests without an Origin header (non-browser clients) are accepted.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "*" {
			return func(*http.Request) bool { return true }
		}
		if a != "" {
			set[a] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Host)]
		return ok
	}
}
