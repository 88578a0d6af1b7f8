package auth

import (
	"fmt"

	"github.com/nerrad567/armlink/internal/infrastructure/config"
)

// Authenticator verifies client credentials against the configured clients.
// It is read-only after construction and safe for concurrent use.
type Authenticator struct {
	clients map[string]Client
}

// NewAuthenticator builds an Authenticator from configuration.
// Every client needs a valid ID, an Argon2id key hash and a known role.
func NewAuthenticator(cfgs []config.APIClientConfig) (*Authenticator, error) {
	a := &Authenticator{clients: make(map[string]Client, len(cfgs))}
	for _, c := range cfgs {
		if !IsValidClientID(c.ID) {
			return nil, fmt.Errorf("%w: id %q", ErrInvalidClient, c.ID)
		}
		if _, exists := a.clients[c.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateClient, c.ID)
		}
		if _, _, _, err := decodePHC(c.KeyHash); err != nil {
			return nil, fmt.Errorf("client %q: %w", c.ID, err)
		}
		role := Role(c.Role)
		if !IsValidRole(role) {
			return nil, fmt.Errorf("%w: client %q has role %q", ErrInvalidClient, c.ID, c.Role)
		}
		a.clients[c.ID] = Client{ID: c.ID, KeyHash: c.KeyHash, Role: role}
	}
	return a, nil
}

// Authenticate returns the client whose ID and key match.
// Unknown IDs and wrong keys both yield ErrInvalidCredentials.
func (a *Authenticator) Authenticate(id, key string) (Client, error) {
	client, ok := a.clients[id]
	if !ok {
		return Client{}, ErrInvalidCredentials
	}

	match, err := VerifyKey(key, client.KeyHash)
	if err != nil {
		return Client{}, fmt.Errorf("verifying key for %q: %w", id, err)
	}
	if !match {
		return Client{}, ErrInvalidCredentials
	}
	return client, nil
}

// Len returns the number of registered clients.
func (a *Authenticator) Len() int {
	return len(a.clients)
}
