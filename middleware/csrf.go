package middleware

import (
	"net/http"

	authcore "github.com/cartstack/authcore"
)

// CSRFHeader is the request header carrying the double-submit token.
const CSRFHeader = "X-CSRF-Token"

// CSRF returns middleware enforcing the double-submit anti-forgery
// check on state-changing methods. Safe methods (GET, HEAD, OPTIONS)
// and the listed exempt paths pass through; everything else must run
// behind [Guard] so the session is already validated.
//
// The federated redemption endpoint is a typical exempt path: the
// caller holds no session yet, and the exchange token is itself
// single-use.
func CSRF(engine *authcore.Engine, exemptPaths ...string) func(http.Handler) http.Handler {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if safeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			res, ok := AccessResultFromContext(r.Context())
			if !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			submitted := r.Header.Get(CSRFHeader)
			if err := engine.VerifyCSRF(r.Context(), res.SessionID, submitted); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
