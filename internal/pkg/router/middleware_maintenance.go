package router

import (
	"net/http"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
)

// middlewareMaintenance answers 503 for routes listed in
// app.maintenance.endpoints. Entries are a route pattern ("/api/v1/identity/login/send"),
// a method and pattern ("POST /api/v1/identity/otp/send"), or "*" for every
// route except /health. The list is read per request so a config reload
// takes effect without a restart.
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg != nil && underMaintenance(cfg.GetArray("app.maintenance.endpoints"), r.Method, matchedRoutePath(r)) {
				writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func underMaintenance(entries []string, method, route string) bool {
	for _, e := range entries {
		switch m, p, hasMethod := strings.Cut(e, " "); {
		case e == "*":
			if route != "/health" {
				return true
			}
		case hasMethod:
			if strings.EqualFold(m, method) && strings.TrimSpace(p) == route {
				return true
			}
		case e == route:
			return true
		}
	}
	return false
}
