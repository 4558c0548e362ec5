package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/google/uuid"
	"github.com/minio/crc64nvme"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeCacheable renders v for a GET with a strong ETag derived from the
// body. A matching If-None-Match yields 304.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, apperr.Internal(err))
		return
	}

	etag := fmt.Sprintf(`"%016x"`, crc64nvme.Checksum(body))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")

	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

func etagMatches(header, etag string) bool {
	for candidate := range strings.SplitSeq(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// decodeBody reads a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperr.Validation(map[string]string{"body": "is too large"})
		case errors.Is(err, io.EOF):
			return apperr.Validation(map[string]string{"body": "is required"})
		default:
			return apperr.Validation(map[string]string{"body": "must be valid JSON"})
		}
	}
	return nil
}

// caller returns the resolved identity of r. Credentials that failed
// verification are rejected; absent credentials yield a nil identity.
func caller(r *http.Request) (*identity.Identity, error) {
	id, err := identity.FromContext(r.Context())
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, apperr.Unauthenticated("invalid credentials")
		}
		return nil, apperr.Internal(err)
	}
	return id, nil
}

// scoped returns the caller and the organization scope named by the
// organizationId query parameter or the X-Organization-ID header. A malformed
// id names no organization the caller can belong to.
func scoped(r *http.Request) (*identity.Identity, identity.OrganizationScope, error) {
	id, err := caller(r)
	if err != nil {
		return nil, identity.OrganizationScope{}, err
	}

	raw := r.URL.Query().Get("organizationId")
	if raw == "" {
		raw = r.Header.Get(OrganizationHeader)
	}

	scope, err := identity.ParseScope(raw)
	if err != nil {
		if id == nil {
			return nil, identity.OrganizationScope{}, apperr.Unauthenticated("authentication required")
		}
		return nil, identity.OrganizationScope{}, apperr.Forbidden("not a member of this organization")
	}

	return id, scope, nil
}

// pathID parses the {id} path segment. A malformed id becomes uuid.Nil, which
// never names a record, so the service still authorizes the caller first.
func pathID(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// authenticated is scoped for endpoints that never serve anonymous callers.
// It rejects them before the body is read.
func authenticated(r *http.Request) (*identity.Identity, identity.OrganizationScope, error) {
	id, scope, err := scoped(r)
	if err != nil {
		return nil, scope, err
	}
	if id == nil {
		return nil, scope, apperr.Unauthenticated("authentication required")
	}
	return id, scope, nil
}
