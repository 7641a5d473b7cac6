// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionSecret is long enough to pass config validation.
const SessionSecret = "0123456789abcdef0123456789abcdef"

// NewRedis starts an in-process redis and returns a client connected to it.
// Both are closed when the test ends.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// JSONRequest builds a request whose body is data encoded as JSON.
func JSONRequest(t testing.TB, method, target string, data any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if data != nil {
		if err := json.NewEncoder(&body).Encode(data); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// RandomUsername returns a unique alphanumeric username that passes validation.
func RandomUsername() string {
	return "user" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// RandomEmail returns a unique address on a reserved domain.
func RandomEmail() string {
	return uuid.NewString()[:8] + "@example.com"
}
