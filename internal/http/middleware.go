// Package http resolves the network address of the client behind a request.
package http

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog"
)

type contextKey struct{}

// ClientAddr resolves client addresses. Forwarding headers are only honoured
// when the direct peer is a trusted proxy. The zero value trusts nobody.
type ClientAddr struct {
	trusted []netip.Prefix
}

// NewClientAddr parses trusted proxies given as addresses or CIDR prefixes.
func NewClientAddr(trustedProxies []string) (*ClientAddr, error) {
	c := &ClientAddr{}
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			c.trusted = append(c.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		c.trusted = append(c.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return c, nil
}

func (c *ClientAddr) trusts(addr netip.Addr) bool {
	for _, prefix := range c.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolve returns the client address of r. X-Forwarded-For is walked from the
// nearest hop back, skipping trusted proxies.
func (c *ClientAddr) Resolve(r *http.Request) string {
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok {
		return r.RemoteAddr
	}
	if !c.trusts(peer) {
		return peer.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			addr = addr.Unmap()
			if i == 0 || !c.trusts(addr) {
				return addr.String()
			}
		}
	}

	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}

	return peer.String()
}

// Middleware stores the client address in the request context and adds it to
// the request logger.
func (c *ClientAddr) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := c.Resolve(r)
		zerolog.Ctx(r.Context()).UpdateContext(func(zc zerolog.Context) zerolog.Context {
			return zc.Str("client_ip", ip)
		})
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, ip)))
	})
}

// FromContext returns the address stored by Middleware.
func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}

func peerAddr(remote string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remote); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(remote); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}
