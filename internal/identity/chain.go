package identity

import (
	"context"
	"net/http"
)

// Chain tries providers in order and returns the first identity found.
// A provider that rejects presented credentials stops the chain, so an
// invalid bearer token never falls back to a session cookie.
type Chain []Provider

// CurrentIdentity implements Provider.
func (c Chain) CurrentIdentity(ctx context.Context, r *http.Request) (*Identity, error) {
	for _, p := range c {
		id, err := p.CurrentIdentity(ctx, r)
		if err != nil {
			return nil, err
		}
		if id != nil {
			return id, nil
		}
	}
	return nil, nil
}

// Memberships implements Provider. Providers in a chain share one
// membership source, so the first one answers.
func (c Chain) Memberships(ctx context.Context, id Identity) ([]Membership, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return c[0].Memberships(ctx, id)
}
