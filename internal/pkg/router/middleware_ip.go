package router

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
)

// middlewareIP rewrites RemoteAddr to the client address. Proxy headers are
// only honored when app.server.trust_proxy_headers is set, since any client
// can send them.
func middlewareIP(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trust := cfg != nil && cfg.GetBool("app.server.trust_proxy_headers")
			if ip := clientIP(r, trust); ip.IsValid() {
				r.RemoteAddr = ip.String()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request, trustHeaders bool) netip.Addr {
	if trustHeaders {
		for _, h := range []string{"True-Client-IP", "X-Real-IP", "X-Forwarded-For"} {
			first, _, _ := strings.Cut(r.Header.Get(h), ",")
			if ip, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return ip.Unmap()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}

	return ip.Unmap()
}
