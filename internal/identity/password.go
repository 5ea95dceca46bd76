package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for credential hashes.
const (
	argonMemoryKB    uint32 = 64 * 1024
	argonTime        uint32 = 3
	argonParallelism uint8  = 4
	argonSaltLength         = 16
	argonKeyLength   uint32 = 32
)

// HashPassword returns a PHC-encoded argon2id hash of password.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemoryKB, argonParallelism, argonKeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemoryKB,
		argonTime,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword reports whether password matches the PHC-encoded hash.
// Comparison is constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	salt, hash, timeCost, memory, parallelism, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, timeCost, memory, parallelism, uint32(len(hash)))
	return subtle.ConstantTimeCompare(computed, hash) == 1, nil
}

func parsePHC(encoded string) (salt, hash []byte, timeCost, memory uint32, parallelism uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, errors.New("invalid password hash format")
	}

	version, convErr := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if convErr != nil || version != argon2.Version {
		return nil, nil, 0, 0, 0, errors.New("unsupported argon2 version")
	}

	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, nil, 0, 0, 0, errors.New("invalid password hash parameters")
		}
		v, convErr := strconv.ParseUint(kv[1], 10, 32)
		if convErr != nil {
			return nil, nil, 0, 0, 0, errors.New("invalid password hash parameters")
		}
		switch kv[0] {
		case "m":
			memory = uint32(v)
		case "t":
			timeCost = uint32(v)
		case "p":
			parallelism = uint8(v)
		}
	}
	if memory == 0 || timeCost == 0 || parallelism == 0 {
		return nil, nil, 0, 0, 0, errors.New("invalid password hash parameters")
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, errors.New("invalid password salt encoding")
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return nil, nil, 0, 0, 0, errors.New("invalid password hash encoding")
	}
	return salt, hash, timeCost, memory, parallelism, nil
}

// MemoryCredentials implements CredentialStore with a fixed credential
// set hashed at registration time. It backs single-site deployments and
// tests.
type MemoryCredentials struct {
	mutex  sync.RWMutex
	users  map[string]string
	dummy  string
	logger zerolog.Logger
}

// NewMemoryCredentials creates an empty in-memory credential store
func NewMemoryCredentials(logger zerolog.Logger) (*MemoryCredentials, error) {
	// An unknown username verifies against this hash so lookups take
	// the same time either way.
	dummy, err := HashPassword("gym-manager-dummy-credential")
	if err != nil {
		return nil, err
	}
	return &MemoryCredentials{
		users:  make(map[string]string),
		dummy:  dummy,
		logger: logger.With().Str("component", "memory_credentials").Logger(),
	}, nil
}

// Add registers a username/password pair. The username doubles as the
// subject identifier.
func (s *MemoryCredentials) Add(username, password string) error {
	if username == "" || password == "" {
		return NewConfigError("username and password must not be empty")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.users[username] = hash

	s.logger.Debug().Str("username", username).Msg("Credential registered")
	return nil
}

// Verify checks a username/password pair
func (s *MemoryCredentials) Verify(ctx context.Context, username, password string) (string, error) {
	s.mutex.RLock()
	hash, exists := s.users[username]
	s.mutex.RUnlock()

	if !exists {
		hash = s.dummy
	}

	ok, err := VerifyPassword(password, hash)
	if err != nil {
		return "", NewStorageError("verify", err)
	}
	if !ok || !exists {
		return "", NewInvalidCredentialsError()
	}
	return username, nil
}
