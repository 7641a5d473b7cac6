package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/time2watch/internal/models"
)

const (
	DefaultSessionDuration = 30 * 24 * time.Hour
	sessionKeyPrefix       = "session:"
	userSessionsKeyPrefix  = "user_sessions:"
	sessionIssuer          = "time2watch"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionInvalid  = errors.New("session token invalid")
)

// SessionClaims is the JWT payload of a session cookie.
type SessionClaims struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// AuthService issues signed session tokens for verified identities. Each token's
// id is registered in Redis so that logout revokes it before expiry, and is
// indexed per user so every session can be revoked at once.
type AuthService struct {
	redis    *redis.Client
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewAuthService(redisClient *redis.Client, secret []byte, duration time.Duration) *AuthService {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &AuthService{
		redis:    redisClient,
		secret:   secret,
		duration: duration,
		now:      time.Now,
	}
}

func (s *AuthService) CreateSession(ctx context.Context, identity *models.Identity) (string, error) {
	now := s.now()
	sessionID := uuid.NewString()

	claims := SessionClaims{
		Username: identity.Username,
		Name:     identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   identity.ID.String(),
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}

	userKey := userSessionsKeyPrefix + identity.ID.String()
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKeyPrefix+sessionID, identity.ID.String(), s.duration)
		pipe.SAdd(ctx, userKey, sessionID)
		pipe.Expire(ctx, userKey, s.duration)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}

	return token, nil
}

func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := s.parse(token, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	stored, err := s.redis.Get(ctx, sessionKeyPrefix+claims.ID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if stored != userID.String() {
		return nil, ErrSessionNotFound
	}

	return &models.Identity{ID: userID, Username: claims.Username, Name: claims.Name}, nil
}

// DeleteSession revokes the token; expired tokens are revoked too.
func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return err
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKeyPrefix+claims.ID)
		pipe.SRem(ctx, userSessionsKeyPrefix+claims.Subject, claims.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// RevokeUserSessions logs the user out everywhere and reports how many live
// sessions were dropped.
func (s *AuthService) RevokeUserSessions(ctx context.Context, userID uuid.UUID) (int, error) {
	userKey := userSessionsKeyPrefix + userID.String()
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("listing sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("revoking sessions: %w", err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

func (s *AuthService) parse(token string, opts ...jwt.ParserOption) (*SessionClaims, error) {
	claims := &SessionClaims{}
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
	)
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, ErrSessionInvalid
	}
	if claims.ID == "" {
		return nil, ErrSessionInvalid
	}
	return claims, nil
}
