package server

import (
	"net/http"
	"net/url"
	"strings"
)

// originAllowed matches origin against patterns: "*", exact origin or
// "*.example.org" for subdomains.
func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		switch {
		case a == "*", a == origin:
			return true
		case strings.HasPrefix(a, "*."):
			u, err := url.Parse(origin)
			if err != nil {
				continue
			}
			if host := u.Hostname(); strings.HasSuffix(host, a[1:]) {
				return true
			}
		}
	}
	return false
}

// checkOrigin lets through clients which do not send Origin (engine hosts
// are not browsers). Without configured origins only same origin requests
// are accepted.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) == 0 {
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		}
		return originAllowed(origin, allowed)
	}
}
