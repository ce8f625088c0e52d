package auth

import (
	"sync"

	apperrors "localcloud/pkg/errors"
)

// CredentialStore resolves secret access keys by access key ID.
type CredentialStore interface {
	// SecretKey returns the secret for the given access key ID, or an
	// AccessKeyNotFound error.
	SecretKey(accessKeyID string) (string, error)
}

// StaticCredentials is an in-memory credential store. The gateway loads it
// from ACCESS_KEY/SECRET_KEY at startup; the config watcher may replace the
// pair at runtime.
type StaticCredentials struct {
	mu    sync.RWMutex
	pairs map[string]string
}

// NewStaticCredentials builds a store from access-key/secret pairs.
func NewStaticCredentials(pairs map[string]string) *StaticCredentials {
	copied := make(map[string]string, len(pairs))
	for id, secret := range pairs {
		copied[id] = secret
	}
	return &StaticCredentials{pairs: copied}
}

// SecretKey implements CredentialStore.
func (s *StaticCredentials) SecretKey(accessKeyID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.pairs[accessKeyID]
	if !ok {
		return "", errAccessKeyNotFound(accessKeyID)
	}
	return secret, nil
}

// Replace swaps the whole credential set, used on config hot reload.
func (s *StaticCredentials) Replace(pairs map[string]string) {
	copied := make(map[string]string, len(pairs))
	for id, secret := range pairs {
		copied[id] = secret
	}
	s.mu.Lock()
	s.pairs = copied
	s.mu.Unlock()
}

func errAccessKeyNotFound(accessKeyID string) error {
	return apperrors.Newf(apperrors.ErrorTypeAccessDenied, "AccessKeyNotFound",
		"access key %q not found", accessKeyID)
}
