package auth

import (
	"net/http"
	"net/url"
)

// OriginAllowed checks a request's Origin header against the allow-list.
// Requests with no Origin header (non-browser clients, host agents) are
// allowed; the admission gate still applies to them. A "*" entry in the
// allow-list accepts any origin.
func OriginAllowed(r *http.Request, allowedOrigins []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return true
		}
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}
