package identity

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Development caller id locations.
const (
	UserIDHeader = "X-User-ID"
	UserIDParam  = "userId"
)

// HeaderProvider trusts a caller id supplied by the client. It exists for
// local development behind --no-auth and must never face the internet.
type HeaderProvider struct {
	*MembershipLoader
}

// NewHeaderProvider creates a development provider.
func NewHeaderProvider(loader *MembershipLoader) *HeaderProvider {
	return &HeaderProvider{MembershipLoader: loader}
}

// CurrentIdentity implements Provider.
func (p *HeaderProvider) CurrentIdentity(ctx context.Context, r *http.Request) (*Identity, error) {
	raw := r.Header.Get(UserIDHeader)
	if raw == "" {
		raw = r.URL.Query().Get(UserIDParam)
	}
	if raw == "" {
		return nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Identity{ID: id, Name: "dev:" + raw}, nil
}
