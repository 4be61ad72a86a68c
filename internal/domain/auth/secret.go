// Package auth implements the bearer-token guard for the protected path.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrUnknownHashType is returned when a stored hash has an unrecognized format.
var ErrUnknownHashType = errors.New("unknown hash type")

// ErrNoSecret is returned by NewSecret when neither a key nor a hash is given.
var ErrNoSecret = errors.New("api key or api key hash is required")

// argon2idParams defines OWASP minimum parameters for Argon2id.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024, // 47 MiB (OWASP minimum: 46 MiB)
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashSecret returns an Argon2id hash of the raw secret in PHC format:
// $argon2id$v=19$m=47104,t=1,p=1$<salt>$<hash>
func HashSecret(raw string) (string, error) {
	return argon2id.CreateHash(raw, argon2idParams)
}

// DetectHashType identifies the algorithm of a stored hash.
// Returns "argon2id" for PHC format, "sha256" for "sha256:<hex>",
// "unknown" otherwise.
func DetectHashType(storedHash string) string {
	switch {
	case strings.HasPrefix(storedHash, "$argon2id$"):
		return "argon2id"
	case strings.HasPrefix(storedHash, "sha256:"):
		return "sha256"
	default:
		return "unknown"
	}
}

// Secret is the configured API secret, held either in plaintext or as a hash.
type Secret struct {
	plain []byte
	hash  string
}

// NewSecret builds a Secret. A non-empty hash takes precedence over key.
func NewSecret(key, hash string) (*Secret, error) {
	if hash != "" {
		if DetectHashType(hash) == "unknown" {
			return nil, ErrUnknownHashType
		}
		return &Secret{hash: hash}, nil
	}
	if key == "" {
		return nil, ErrNoSecret
	}
	return &Secret{plain: []byte(key)}, nil
}

// Matches reports whether token equals the secret. Plaintext secrets are
// compared in constant time.
func (s *Secret) Matches(token string) bool {
	if s.hash == "" {
		return subtle.ConstantTimeCompare([]byte(token), s.plain) == 1
	}
	ok, err := verifyHash(token, s.hash)
	return err == nil && ok
}

func verifyHash(token, storedHash string) (bool, error) {
	switch DetectHashType(storedHash) {
	case "argon2id":
		return safeArgon2idCompare(token, storedHash)
	case "sha256":
		sum := sha256.Sum256([]byte(token))
		computed := hex.EncodeToString(sum[:])
		expected := strings.ToLower(strings.TrimPrefix(storedHash, "sha256:"))
		return subtle.ConstantTimeCompare([]byte(computed), []byte(expected)) == 1, nil
	default:
		return false, ErrUnknownHashType
	}
}

// safeArgon2idCompare wraps argon2id.ComparePasswordAndHash with panic recovery.
// The argon2 library panics on hashes with invalid parameters (t=0, p=0).
func safeArgon2idCompare(token, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(token, storedHash)
}
