package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/time2watch/internal/models"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidLoginCode = errors.New("invalid login code")
)

const userColumns = `id, name, username, email, login_code_hash, avatar_url, created_at, updated_at`

type UserService struct {
	db       DB
	generate codeGenerator
	now      func() time.Time
}

func NewUserService(db DB) *UserService {
	return &UserService{
		db:       db,
		generate: GenerateLoginCode,
		now:      time.Now,
	}
}

// NormalizeUsername lower-cases and trims a username; usernames are stored lower-cased.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user and returns the plaintext login code, which is never stored.
func (s *UserService) Register(ctx context.Context, params models.RegisterUserParams) (*models.User, string, error) {
	username := NormalizeUsername(params.Username)

	var taken bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username).Scan(&taken)
	if err != nil {
		return nil, "", fmt.Errorf("checking username existence: %w", err)
	}
	if taken {
		return nil, "", ErrUsernameTaken
	}

	var email *string
	if e := normalizeEmail(params.Email); e != "" {
		email = &e
		err = s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", e).Scan(&taken)
		if err != nil {
			return nil, "", fmt.Errorf("checking email existence: %w", err)
		}
		if taken {
			return nil, "", ErrEmailTaken
		}
	}

	var name *string
	if n := strings.TrimSpace(params.Name); n != "" {
		name = &n
	}

	code, codeHash, err := issueLoginCode(ctx, s.db, s.generate)
	if err != nil {
		return nil, "", err
	}

	user, err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users (name, username, email, login_code_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		name, username, email, codeHash,
	))
	if err != nil {
		if mapped := mapUserConstraint(err); mapped != nil {
			return nil, "", mapped
		}
		return nil, "", fmt.Errorf("creating user: %w", err)
	}

	return user, code, nil
}

// Authenticate resolves a login code to its user. Unknown and empty codes are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, code string) (*models.User, error) {
	code = NormalizeLoginCode(code)
	if code == "" {
		return nil, ErrInvalidLoginCode
	}

	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE login_code_hash = $1`,
		HashLoginCode(code),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidLoginCode
	}
	if err != nil {
		return nil, fmt.Errorf("looking up login code: %w", err)
	}
	return user, nil
}

// RecoverCode replaces the login code of the user owning email and returns the new code.
func (s *UserService) RecoverCode(ctx context.Context, email string) (*models.User, string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, "", ErrUserNotFound
	}

	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrUserNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting user by email: %w", err)
	}

	code, codeHash, err := issueLoginCode(ctx, s.db, s.generate)
	if err != nil {
		return nil, "", err
	}

	result, err := s.db.Exec(ctx,
		`UPDATE users SET login_code_hash = $1, updated_at = $2 WHERE id = $3`,
		codeHash, s.now(), user.ID,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, "", ErrCodeGenerationExhausted
		}
		return nil, "", fmt.Errorf("updating login code: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, "", ErrUserNotFound
	}

	user.LoginCodeHash = codeHash
	return user, code, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		NormalizeUsername(username),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the fields that are set in params; an empty string clears a field.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	current, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	name := current.Name
	if params.Name != nil {
		name = optionalString(strings.TrimSpace(*params.Name))
	}
	email := current.Email
	if params.Email != nil {
		email = optionalString(normalizeEmail(*params.Email))
	}
	avatar := current.AvatarURL
	if params.AvatarURL != nil {
		avatar = optionalString(strings.TrimSpace(*params.AvatarURL))
	}

	user, err := scanUser(s.db.QueryRow(ctx,
		`UPDATE users SET name = $1, email = $2, avatar_url = $3, updated_at = $4
		 WHERE id = $5
		 RETURNING `+userColumns,
		name, email, avatar, s.now(), userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		if mapped := mapUserConstraint(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return user, nil
}

func scanUser(row Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Name, &user.Username, &user.Email, &user.LoginCodeHash, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// mapUserConstraint turns a unique violation on users into the matching sentinel.
func mapUserConstraint(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	switch constraint {
	case "users_username_key":
		return ErrUsernameTaken
	case "users_email_key":
		return ErrEmailTaken
	case "users_login_code_hash_key":
		return ErrCodeGenerationExhausted
	}
	return nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
