package keystore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Keyring coordinates for the stored backend key.
const (
	serviceName = "claudebridge"
	accountName = "backend-api-key"
)

// ErrNotFound reports that no key is stored.
var ErrNotFound = errors.New("no API key stored")

// Store reads and writes the backend API key in the OS keyring.
type Store struct {
	service string
	account string
}

func New() *Store {
	return &Store{service: serviceName, account: accountName}
}

// Set stores the key, replacing any previous value.
func (s *Store) Set(key string) error {
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}
	if err := keyring.Set(s.service, s.account, key); err != nil {
		return fmt.Errorf("store API key in keyring: %w", err)
	}
	return nil
}

// Get returns the stored key, or ErrNotFound when none is stored.
func (s *Store) Get() (string, error) {
	key, err := keyring.Get(s.service, s.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read API key from keyring: %w", err)
	}
	return key, nil
}

// Clear removes the stored key. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	err := keyring.Delete(s.service, s.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete API key from keyring: %w", err)
	}
	return nil
}
