package middleware

import (
	"net"
	"net/http"
	"strings"

	goSecure "github.com/MrEthical07/goSecure"
)

// ClientContextConfig controls ClientContext.
type ClientContextConfig struct {
	// TrustForwardedFor takes the left-most X-Forwarded-For entry as the
	// client IP. Enable only behind a proxy that overwrites the header.
	TrustForwardedFor bool
	// LocationHeader, when set, names a header carrying a proxy-resolved
	// location such as "Dubai, AE".
	LocationHeader string
}

// ClientContext attaches the client IP, User-Agent and optional location
// to the request context.
func ClientContext(cfg ClientContextConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := goSecure.WithClientIP(r.Context(), clientIP(r, cfg.TrustForwardedFor))
			ctx = goSecure.WithUserAgent(ctx, r.UserAgent())
			if cfg.LocationHeader != "" {
				if loc := strings.TrimSpace(r.Header.Get(cfg.LocationHeader)); loc != "" {
					ctx = goSecure.WithLocation(ctx, loc)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
