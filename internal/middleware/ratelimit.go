package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/HammerMeetNail/time2watch/internal/handlers"
	"github.com/HammerMeetNail/time2watch/internal/logging"
	"github.com/HammerMeetNail/time2watch/internal/services"
)

// KeyFunc derives the bucket identity for a request.
type KeyFunc func(r *http.Request) string

// RateLimiter guards a route with a fixed-window limiter.
type RateLimiter struct {
	limiter  services.Limiter
	limit    int
	prefix   string
	keyFunc  KeyFunc
	failOpen bool
}

// NewRateLimiter builds a guard. limit is only reported in headers; the
// limiter itself enforces its policy. A nil keyFunc keys by client IP.
func NewRateLimiter(limiter services.Limiter, limit int, prefix string, keyFunc KeyFunc, failOpen bool) *RateLimiter {
	if keyFunc == nil {
		keyFunc = KeyByIP
	}
	return &RateLimiter{
		limiter:  limiter,
		limit:    limit,
		prefix:   prefix,
		keyFunc:  keyFunc,
		failOpen: failOpen,
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limiter == nil {
			if rl.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusServiceUnavailable, "Please try again later")
			return
		}

		key := rl.prefix + rl.keyFunc(r)
		result, err := rl.limiter.Hit(r.Context(), key)
		if err != nil {
			logging.FromContext(r.Context()).Error("Rate limit check failed", map[string]interface{}{
				"error":  err.Error(),
				"prefix": rl.prefix,
			})
			if rl.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusServiceUnavailable, "Please try again later")
			return
		}

		if rl.limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			handlers.WriteRateLimited(w, result)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// directClients trusts no proxy.
var directClients = &ClientIPResolver{}

// KeyByIP keys by the direct peer address.
func KeyByIP(r *http.Request) string {
	return directClients.KeyByIP(r)
}

func KeyByIdentity(r *http.Request) string {
	return directClients.KeyByIdentity(r)
}

// GetClientIP returns the direct peer address; use a ClientIPResolver to
// honor forwarding headers from known proxies.
func GetClientIP(r *http.Request) string {
	return directClients.ClientIP(r)
}

func identityKey(r *http.Request) string {
	if identity := handlers.GetIdentityFromContext(r.Context()); identity != nil {
		return "user:" + identity.ID.String()
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
