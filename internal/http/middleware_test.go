package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClientAddr(t *testing.T) {
	c, err := NewClientAddr([]string{"10.0.0.0/8", " 192.168.1.5 ", ""})
	require.NoError(t, err)
	require.Len(t, c.trusted, 2)

	_, err = NewClientAddr([]string{"not-an-ip"})
	require.ErrorContains(t, err, "not-an-ip")

	_, err = NewClientAddr([]string{"10.0.0.0/99"})
	require.Error(t, err)
}

func TestClientAddr_Resolve(t *testing.T) {
	trusting, err := NewClientAddr([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		addr     *ClientAddr
		remote   string
		headers  map[string]string
		expected string
	}{
		{
			name:     "untrusted peer ignores forwarding headers",
			addr:     &ClientAddr{},
			remote:   "203.0.113.9:4321",
			headers:  map[string]string{"X-Forwarded-For": "198.51.100.1"},
			expected: "203.0.113.9",
		},
		{
			name:     "trusted peer uses nearest untrusted hop",
			addr:     trusting,
			remote:   "10.0.0.2:80",
			headers:  map[string]string{"X-Forwarded-For": "198.51.100.1, 203.0.113.7, 10.0.0.3"},
			expected: "203.0.113.7",
		},
		{
			name:     "all hops trusted uses the first",
			addr:     trusting,
			remote:   "10.0.0.2:80",
			headers:  map[string]string{"X-Forwarded-For": "10.1.1.1,10.0.0.3"},
			expected: "10.1.1.1",
		},
		{
			name:     "malformed hop stops the walk",
			addr:     trusting,
			remote:   "10.0.0.2:80",
			headers:  map[string]string{"X-Forwarded-For": "garbage"},
			expected: "10.0.0.2",
		},
		{
			name:     "real ip header",
			addr:     trusting,
			remote:   "10.0.0.2:80",
			headers:  map[string]string{"X-Real-IP": "198.51.100.4"},
			expected: "198.51.100.4",
		},
		{
			name:     "ipv6 peer",
			addr:     &ClientAddr{},
			remote:   "[2001:db8::1]:443",
			expected: "2001:db8::1",
		},
		{
			name:     "unparseable remote addr",
			addr:     &ClientAddr{},
			remote:   "@",
			expected: "@",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			require.Equal(t, tt.expected, tt.addr.Resolve(r))
		})
	}
}

func TestClientAddr_Middleware(t *testing.T) {
	var seen string
	h := (&ClientAddr{}).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.20:5555"
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.Equal(t, "198.51.100.20", seen)
	require.Empty(t, FromContext(r.Context()))
}
