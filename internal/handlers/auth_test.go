package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/time2watch/internal/models"
	"github.com/HammerMeetNail/time2watch/internal/services"
)

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Username: "tester01"}
}

func TestAuthHandler_Register_Success(t *testing.T) {
	var got models.RegisterUserParams
	users := &mockUserService{
		RegisterFunc: func(ctx context.Context, params models.RegisterUserParams) (*models.User, string, error) {
			got = params
			return &models.User{ID: uuid.New(), Username: "tester01"}, "ABCDEFGHJKLMNPQR", nil
		},
	}
	handler := NewAuthHandler(users, &mockAuthService{}, nil, false, 0)

	rr := httptest.NewRecorder()
	handler.Register(rr, newRequest(http.MethodPost, "/api/auth/register",
		`{"name":"  Tester  ","username":"Tester01","email":"t@example.com"}`, nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp RegisterResponse
	decodeBody(t, rr, &resp)
	if resp.Code != "ABCDEFGHJKLMNPQR" {
		t.Errorf("expected the code to be shown once, got %q", resp.Code)
	}
	if got.Name != "Tester" || got.Username != "Tester01" || got.Email != "t@example.com" {
		t.Errorf("unexpected params: %+v", got)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Error("registration should not start a session")
	}
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "empty body", body: "", wantStatus: http.StatusBadRequest, wantError: "Request body is required"},
		{name: "bad json", body: "{", wantStatus: http.StatusBadRequest, wantError: "Invalid request body"},
		{name: "missing username", body: `{}`, wantStatus: http.StatusBadRequest, wantError: "username is required"},
		{name: "bad username", body: `{"username":"no spaces"}`, wantStatus: http.StatusBadRequest, wantError: "username must contain only letters and digits"},
		{name: "short username", body: `{"username":"ab"}`, wantStatus: http.StatusBadRequest, wantError: "username must be at least 3 characters"},
		{name: "bad email", body: `{"username":"tester01","email":"nope"}`, wantStatus: http.StatusBadRequest, wantError: "email must be a valid email address"},
		{name: "username taken", body: `{"username":"tester01"}`, err: services.ErrUsernameTaken, wantStatus: http.StatusConflict, wantError: "Username already taken"},
		{name: "email taken", body: `{"username":"tester01","email":"t@example.com"}`, err: services.ErrEmailTaken, wantStatus: http.StatusConflict, wantError: "Email already registered"},
		{name: "code exhaustion", body: `{"username":"tester01"}`, err: services.ErrCodeGenerationExhausted, wantStatus: http.StatusInternalServerError, wantError: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			users := &mockUserService{
				RegisterFunc: func(ctx context.Context, params models.RegisterUserParams) (*models.User, string, error) {
					called = true
					return nil, "", tt.err
				},
			}
			handler := NewAuthHandler(users, &mockAuthService{}, nil, false, 0)

			rr := httptest.NewRecorder()
			handler.Register(rr, newRequest(http.MethodPost, "/api/auth/register", tt.body, nil))

			assertErrorResponse(t, rr, tt.wantStatus, tt.wantError)
			if tt.err == nil && called {
				t.Error("invalid input must not reach the service")
			}
		})
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	user := testUser()
	var sessionFor *models.Identity
	users := &mockUserService{
		AuthenticateFunc: func(ctx context.Context, code string) (*models.User, error) {
			if code != "abcd-efgh" {
				t.Errorf("unexpected code %q", code)
			}
			return user, nil
		},
	}
	auth := &mockAuthService{
		CreateSessionFunc: func(ctx context.Context, identity *models.Identity) (string, error) {
			sessionFor = identity
			return "signed-token", nil
		},
	}
	handler := NewAuthHandler(users, auth, nil, true, time.Hour)

	rr := httptest.NewRecorder()
	handler.Login(rr, newRequest(http.MethodPost, "/api/auth/login", `{"code":"abcd-efgh"}`, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if sessionFor == nil || sessionFor.ID != user.ID || sessionFor.Username != "tester01" {
		t.Fatalf("unexpected session identity: %+v", sessionFor)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != SessionCookieName || c.Value != "signed-token" || !c.HttpOnly || !c.Secure || c.MaxAge != 3600 {
		t.Errorf("unexpected cookie: %+v", c)
	}
}

func TestAuthHandler_Login_InvalidCode(t *testing.T) {
	handler := NewAuthHandler(&mockUserService{}, &mockAuthService{}, nil, false, 0)

	rr := httptest.NewRecorder()
	handler.Login(rr, newRequest(http.MethodPost, "/api/auth/login", `{"code":"WRONGCODE"}`, nil))

	assertErrorResponse(t, rr, http.StatusUnauthorized, "Invalid access code")
}

func TestAuthHandler_Login_SessionError(t *testing.T) {
	users := &mockUserService{
		AuthenticateFunc: func(ctx context.Context, code string) (*models.User, error) { return testUser(), nil },
	}
	auth := &mockAuthService{
		CreateSessionFunc: func(ctx context.Context, identity *models.Identity) (string, error) {
			return "", errors.New("redis down")
		},
	}
	handler := NewAuthHandler(users, auth, nil, false, 0)

	rr := httptest.NewRecorder()
	handler.Login(rr, newRequest(http.MethodPost, "/api/auth/login", `{"code":"ABCDEFGH"}`, nil))

	assertErrorResponse(t, rr, http.StatusInternalServerError, "Internal server error")
}

func TestAuthHandler_Login_CodeLimiter(t *testing.T) {
	t.Run("keys by normalized code hash", func(t *testing.T) {
		limiter := &mockLimiter{}
		handler := NewAuthHandler(&mockUserService{}, &mockAuthService{}, nil, false, 0).WithCodeLimiter(limiter, false)

		for _, body := range []string{`{"code":" abcdefgh "}`, `{"code":"ABCDEFGH"}`} {
			handler.Login(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/auth/login", body, nil))
		}

		want := "login:code:" + services.HashLoginCode("ABCDEFGH")
		if len(limiter.keys) != 2 || limiter.keys[0] != want || limiter.keys[1] != want {
			t.Fatalf("expected both attempts keyed as %q, got %v", want, limiter.keys)
		}
	})

	t.Run("denied", func(t *testing.T) {
		authenticated := false
		users := &mockUserService{
			AuthenticateFunc: func(ctx context.Context, code string) (*models.User, error) {
				authenticated = true
				return testUser(), nil
			},
		}
		limiter := &mockLimiter{HitFunc: func(ctx context.Context, key string) (models.RateLimitResult, error) {
			return models.RateLimitResult{Allowed: false, RetryAfter: 90*time.Second + time.Millisecond}, nil
		}}
		handler := NewAuthHandler(users, &mockAuthService{}, nil, false, 0).WithCodeLimiter(limiter, false)

		rr := httptest.NewRecorder()
		handler.Login(rr, newRequest(http.MethodPost, "/api/auth/login", `{"code":"ABCDEFGH"}`, nil))

		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rr.Code)
		}
		if got := rr.Header().Get("Retry-After"); got != "91" {
			t.Errorf("expected Retry-After 91, got %q", got)
		}
		if authenticated {
			t.Error("a throttled attempt must not check the code")
		}
	})

	t.Run("limiter error fails closed", func(t *testing.T) {
		limiter := &mockLimiter{HitFunc: func(ctx context.Context, key string) (models.RateLimitResult, error) {
			return models.RateLimitResult{}, errors.New("db down")
		}}
		handler := NewAuthHandler(&mockUserService{}, &mockAuthService{}, nil, false, 0).WithCodeLimiter(limiter, false)

		rr := httptest.NewRecorder()
		handler.Login(rr, newRequest(http.MethodPost, "/api/auth/login", `{"code":"ABCDEFGH"}`, nil))

		assertErrorResponse(t, rr, http.StatusServiceUnavailable, "Please try again later")
	})

	t.Run("limiter error fails open when configured", func(t *testing.T) {
		limiter := &mockLimiter{HitFunc: func(ctx context.Context, key string) (models.RateLimitResult, error) {
			return models.RateLimitResult{}, errors.New("db down")
		}}
		users := &mockUserService{
			AuthenticateFunc: func(ctx context.Context, code string) (*models.User, error) { return testUser(), nil },
		}
		handler := NewAuthHandler(users, &mockAuthService{}, nil, false, 0).WithCodeLimiter(limiter, true)

		rr := httptest.NewRecorder()
		handler.Login(rr, newRequest(http.MethodPost, "/api/auth/login", `{"code":"ABCDEFGH"}`, nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	var deleted string
	auth := &mockAuthService{
		DeleteSessionFunc: func(ctx context.Context, token string) error {
			deleted = token
			return nil
		},
	}
	handler := NewAuthHandler(&mockUserService{}, auth, nil, false, 0)

	req := newRequest(http.MethodPost, "/api/auth/logout", "", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "abc"})
	rr := httptest.NewRecorder()
	handler.Logout(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if deleted != "abc" {
		t.Errorf("expected session abc to be deleted, got %q", deleted)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected session cookie to be cleared, got %+v", cookies)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	handler := NewAuthHandler(&mockUserService{}, &mockAuthService{}, nil, false, 0)

	rr := httptest.NewRecorder()
	handler.Me(rr, newRequest(http.MethodGet, "/api/auth/me", "", nil))
	assertErrorResponse(t, rr, http.StatusUnauthorized, "Not authenticated")

	identity := testIdentity()
	rr = httptest.NewRecorder()
	handler.Me(rr, newRequest(http.MethodGet, "/api/auth/me", "", identity))
	var resp AuthResponse
	decodeBody(t, rr, &resp)
	if resp.User == nil || resp.User.ID != identity.ID {
		t.Fatalf("expected identity in response, got %+v", resp.User)
	}
}

func TestAuthHandler_Recover(t *testing.T) {
	known := func(ctx context.Context, email string) (*models.User, string, error) {
		return testUser(), "NEWCODE234", nil
	}

	t.Run("unknown email looks the same", func(t *testing.T) {
		mailer := &mockMailer{}
		handler := NewAuthHandler(&mockUserService{}, &mockAuthService{}, mailer, false, 0)

		rr := httptest.NewRecorder()
		handler.Recover(rr, newRequest(http.MethodPost, "/api/auth/recover", `{"email":"nobody@example.com"}`, nil))

		var resp RecoverResponse
		decodeBody(t, rr, &resp)
		if rr.Code != http.StatusOK || resp.Message != recoverMessage || resp.Code != "" {
			t.Fatalf("unexpected response %d %+v", rr.Code, resp)
		}
		if len(mailer.sent) != 0 {
			t.Error("nothing should be sent for unknown emails")
		}
	})

	t.Run("delivered by mail", func(t *testing.T) {
		mailer := &mockMailer{}
		handler := NewAuthHandler(&mockUserService{RecoverCodeFunc: known}, &mockAuthService{}, mailer, false, 0)

		rr := httptest.NewRecorder()
		handler.Recover(rr, newRequest(http.MethodPost, "/api/auth/recover", `{"email":"t@example.com"}`, nil))

		var resp RecoverResponse
		decodeBody(t, rr, &resp)
		if rr.Code != http.StatusOK || resp.Message != recoverMessage || resp.Code != "" {
			t.Fatalf("unexpected response %d %+v", rr.Code, resp)
		}
		if len(mailer.sent) != 1 || mailer.sent[0] != "t@example.com" {
			t.Errorf("expected mail to t@example.com, got %v", mailer.sent)
		}
	})

	t.Run("known and unknown emails are indistinguishable", func(t *testing.T) {
		users := &mockUserService{RecoverCodeFunc: func(ctx context.Context, email string) (*models.User, string, error) {
			if email == "known@example.com" {
				return testUser(), "ABCDEFGHJKLMNPQR", nil
			}
			return nil, "", services.ErrUserNotFound
		}}
		handler := NewAuthHandler(users, &mockAuthService{}, &mockMailer{}, false, 0)

		bodies := make(map[string]string)
		for _, email := range []string{"known@example.com", "unknown@example.com"} {
			rr := httptest.NewRecorder()
			handler.Recover(rr, newRequest(http.MethodPost, "/api/auth/recover", `{"email":"`+email+`"}`, nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("%s: expected 200, got %d", email, rr.Code)
			}
			bodies[email] = rr.Body.String()
		}
		if bodies["known@example.com"] != bodies["unknown@example.com"] {
			t.Errorf("responses differ:\n%s\n%s", bodies["known@example.com"], bodies["unknown@example.com"])
		}
	})

	t.Run("unavailable without a mailer", func(t *testing.T) {
		looked := false
		users := &mockUserService{RecoverCodeFunc: func(ctx context.Context, email string) (*models.User, string, error) {
			looked = true
			return testUser(), "NEWCODE234", nil
		}}
		handler := NewAuthHandler(users, &mockAuthService{}, nil, false, 0)

		for _, email := range []string{"t@example.com", "nobody@example.com"} {
			rr := httptest.NewRecorder()
			handler.Recover(rr, newRequest(http.MethodPost, "/api/auth/recover", `{"email":"`+email+`"}`, nil))
			assertErrorResponse(t, rr, http.StatusServiceUnavailable, "Access code recovery is unavailable")
		}
		if looked {
			t.Error("no account lookup should happen without a delivery channel")
		}
	})

	t.Run("echoed when enabled for development", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{RecoverCodeFunc: known}, &mockAuthService{}, nil, false, 0).WithCodeEcho(true)

		rr := httptest.NewRecorder()
		handler.Recover(rr, newRequest(http.MethodPost, "/api/auth/recover", `{"email":"t@example.com"}`, nil))

		var resp RecoverResponse
		decodeBody(t, rr, &resp)
		if resp.Code != "NEWCODE234" {
			t.Fatalf("expected echoed code, got %+v", resp)
		}
	})

	t.Run("revokes existing sessions", func(t *testing.T) {
		var revoked []uuid.UUID
		sessions := &mockAuthService{RevokeUserSessionsFunc: func(ctx context.Context, userID uuid.UUID) (int, error) {
			revoked = append(revoked, userID)
			return 2, nil
		}}
		user := testUser()
		users := &mockUserService{RecoverCodeFunc: func(ctx context.Context, email string) (*models.User, string, error) {
			return user, "NEWCODE234", nil
		}}
		handler := NewAuthHandler(users, sessions, &mockMailer{}, false, 0)

		rr := httptest.NewRecorder()
		handler.Recover(rr, newRequest(http.MethodPost, "/api/auth/recover", `{"email":"t@example.com"}`, nil))
		if rr.Code != http.StatusOK || len(revoked) != 1 || revoked[0] != user.ID {
			t.Fatalf("expected sessions of %s revoked, got %d %v", user.ID, rr.Code, revoked)
		}
	})

	t.Run("delivery failure", func(t *testing.T) {
		mailer := &mockMailer{SendLoginCodeFunc: func(ctx context.Context, to, username, code string) error {
			return errors.New("smtp down")
		}}
		handler := NewAuthHandler(&mockUserService{RecoverCodeFunc: known}, &mockAuthService{}, mailer, false, 0)

		rr := httptest.NewRecorder()
		handler.Recover(rr, newRequest(http.MethodPost, "/api/auth/recover", `{"email":"t@example.com"}`, nil))

		assertErrorResponse(t, rr, http.StatusBadGateway, "Could not deliver the access code. Please try again later.")
	})

	t.Run("invalid email", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{}, &mockAuthService{}, nil, false, 0)

		rr := httptest.NewRecorder()
		handler.Recover(rr, newRequest(http.MethodPost, "/api/auth/recover", `{"email":"nope"}`, nil))

		assertErrorResponse(t, rr, http.StatusBadRequest, "email must be a valid email address")
	})
}
