// Package identity supplies the current authenticated identity to
// calling code. The pipeline core only reads it for poster context.
package identity

import "context"

// Identity describes the authenticated principal.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Provider yields the current identity, or nil when nobody is
// authenticated.
type Provider interface {
	CurrentIdentity(ctx context.Context) (*Identity, error)
}

// Static is a Provider wired with a fixed identity, used by host
// processes that run under a service account.
type Static struct {
	identity *Identity
}

// NewStatic creates a Static provider.
func NewStatic(id *Identity) *Static {
	return &Static{identity: id}
}

// CurrentIdentity implements Provider.CurrentIdentity
func (s *Static) CurrentIdentity(ctx context.Context) (*Identity, error) {
	return s.identity, nil
}
