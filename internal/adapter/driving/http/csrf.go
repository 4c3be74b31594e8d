package httphandler

import (
	"log/slog"
	"net/http"
)

// crossOriginMiddleware rejects state-changing requests a browser sent on
// behalf of another origin. Safe methods and non-browser clients (no Origin
// and no Sec-Fetch-Site) pass through.
func crossOriginMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	protection := http.NewCrossOriginProtection()
	protection.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Warn("cross-origin request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"origin", r.Header.Get("Origin"),
		)
		writeError(w, http.StatusForbidden, "cross-origin request rejected")
	}))
	return protection.Handler(next)
}
