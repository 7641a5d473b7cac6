package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// loginCodeAlphabet omits 0, 1, I and O.
	loginCodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	DefaultLoginCodeLen  = 16
	maxLoginCodeAttempts = 5
)

var ErrCodeGenerationExhausted = errors.New("could not generate a unique login code")

// GenerateLoginCode returns length characters drawn from the unambiguous alphabet.
// A failing system CSPRNG is unrecoverable, so it panics instead of returning an error.
func GenerateLoginCode(length int) string {
	if length <= 0 {
		length = DefaultLoginCodeLen
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	code := make([]byte, length)
	for i, b := range buf {
		code[i] = loginCodeAlphabet[int(b)%len(loginCodeAlphabet)]
	}
	return string(code)
}

// HashLoginCode is the stored form of a login code: hex SHA-256 of the upper-cased input.
func HashLoginCode(code string) string {
	sum := sha256.Sum256([]byte(strings.ToUpper(code)))
	return hex.EncodeToString(sum[:])
}

// NormalizeLoginCode trims whitespace and upper-cases user input.
func NormalizeLoginCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type codeGenerator func(length int) string

// issueLoginCode draws codes until one whose hash is not yet stored is found.
func issueLoginCode(ctx context.Context, q Querier, generate codeGenerator) (code, hash string, err error) {
	for attempt := 0; attempt < maxLoginCodeAttempts; attempt++ {
		code = generate(DefaultLoginCodeLen)
		hash = HashLoginCode(code)

		var taken bool
		err = q.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE login_code_hash = $1)",
			hash,
		).Scan(&taken)
		if err != nil {
			return "", "", fmt.Errorf("checking login code uniqueness: %w", err)
		}
		if !taken {
			return code, hash, nil
		}
	}
	return "", "", ErrCodeGenerationExhausted
}
