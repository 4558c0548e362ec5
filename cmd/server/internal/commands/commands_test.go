package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServeCmd_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     ServeCmd
		wantErr string
	}{
		{name: "defaults", cmd: ServeCmd{TraceSampleRatio: 1}},
		{name: "cert without key", cmd: ServeCmd{Cert: "cert.pem"}, wantErr: "TLS certificate and key"},
		{name: "short session secret", cmd: ServeCmd{SessionSecret: "short"}, wantErr: "at least 32 bytes"},
		{name: "long session secret", cmd: ServeCmd{SessionSecret: strings.Repeat("s", 32)}},
		{name: "jwks without issuer", cmd: ServeCmd{JWKSURL: "https://idp.example.com/jwks"}, wantErr: "--token-issuer"},
		{name: "sample ratio", cmd: ServeCmd{TraceSampleRatio: 2}, wantErr: "between 0 and 1"},
		{name: "trusted proxies", cmd: ServeCmd{TrustedProxies: []string{"10.0.0.0/8", "192.0.2.1"}}},
		{name: "bad trusted proxy", cmd: ServeCmd{TrustedProxies: []string{"proxy.internal"}}, wantErr: "invalid trusted proxy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPostgresFlags_Validate(t *testing.T) {
	require.Error(t, (&PostgresFlags{}).Validate())
	require.NoError(t, (&PostgresFlags{ConnString: "postgres://localhost/funnel"}).Validate())
	require.ErrorContains(t, (&PostgresFlags{ConnString: "postgres://localhost/funnel", MaxConns: 2, MinConns: 4}).Validate(),
		"must not exceed")
}
