package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
)

// ClientKey identifies the caller by remote host. Run chi's RealIP first so
// proxied addresses are honoured.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware applies l per ClientKey. Rejected requests get a Retry-After
// header and are handed to reject, which writes the body.
func Middleware(l *Limiter, reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(ClientKey(r))
			w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(d.Limit, 'f', 0, 64))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatFloat(math.Floor(d.Remaining), 'f', 0, 64))
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
