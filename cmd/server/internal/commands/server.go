package commands

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/funnelhq/funnel360/internal/authz"
	"github.com/funnelhq/funnel360/internal/client"
	"github.com/funnelhq/funnel360/internal/guard"
	httpmiddleware "github.com/funnelhq/funnel360/internal/http"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/logger"
	"github.com/funnelhq/funnel360/internal/login"
	"github.com/funnelhq/funnel360/internal/server"
	"github.com/funnelhq/funnel360/internal/service"
	"github.com/funnelhq/funnel360/internal/telemetry"
	"github.com/funnelhq/funnel360/internal/website/oidc"
	"github.com/rs/zerolog"
)

type ServeCmd struct {
	// Server configuration
	Listen  string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"FUNNEL_LISTEN"`
	Cert    string `help:"path to TLS cert file" default:"" env:"FUNNEL_TLS_CERT"`
	Key     string `help:"path to TLS key file" default:"" env:"FUNNEL_TLS_KEY"`
	BaseURL string `help:"public base URL, also the issuer of first-party tokens" default:"http://localhost:8080" env:"FUNNEL_BASE_URL"`

	CORSOrigins    []string `help:"allowed CORS origins for API requests" default:"http://localhost:3000" env:"FUNNEL_CORS_ORIGINS"`
	TrustedProxies []string `help:"proxy addresses or CIDRs whose X-Forwarded-For is trusted" env:"FUNNEL_TRUSTED_PROXIES"`

	// GitHub OAuth configuration
	GitHub GitHubFlags `embed:"" prefix:"github-"`

	// Sessions
	SessionSecret          string        `help:"secret signing session cookies, at least 32 bytes" env:"FUNNEL_SESSION_SECRET"`
	SessionTTL             time.Duration `help:"session TTL" default:"168h" env:"FUNNEL_SESSION_TTL"`
	SessionCleanupInterval time.Duration `help:"how often expired sessions are deleted, 0 disables" default:"1h" env:"FUNNEL_SESSION_CLEANUP_INTERVAL"`

	// Bearer tokens
	SigningKeyFile string        `help:"PEM encoded P-256 key for issued tokens, generated when empty" env:"FUNNEL_SIGNING_KEY_FILE"`
	TokenTTL       time.Duration `help:"lifetime of issued bearer tokens" default:"1h" env:"FUNNEL_TOKEN_TTL"`
	TokenAudience  string        `help:"audience of bearer tokens, empty disables the check" default:"" env:"FUNNEL_TOKEN_AUDIENCE"`
	TokenIssuer    string        `help:"trust bearer tokens from this external issuer instead of our own" default:"" env:"FUNNEL_TOKEN_ISSUER"`
	JWKSURL        string        `help:"JWKS URL of the external issuer, defaults to <issuer>/.well-known/jwks.json" default:"" env:"FUNNEL_JWKS_URL"`
	JWKSCacheDir   string        `help:"directory for the JWKS HTTP cache, in memory when empty" default:"" env:"FUNNEL_JWKS_CACHE_DIR"`

	// Authorization
	PolicyFile             string        `help:"YAML role permission policy, built-in default when empty" env:"FUNNEL_POLICY_FILE"`
	MembershipTTL          time.Duration `help:"how long memberships are cached per caller" default:"30s" env:"FUNNEL_MEMBERSHIP_TTL"`
	TeamMembersRequireAuth bool          `help:"require authentication to list team members" default:"false" env:"FUNNEL_TEAM_MEMBERS_REQUIRE_AUTH"`
	ResolveTimeout         time.Duration `help:"how long a page waits to resolve the caller" default:"5s" env:"FUNNEL_RESOLVE_TIMEOUT"`

	// Development and operational modes
	NoAuth           bool    `help:"trust the X-User-ID header (development only)" default:"false" env:"FUNNEL_NO_AUTH"`
	Tracing          bool    `help:"enable tracing and metrics export" default:"false" env:"FUNNEL_TRACING"`
	TraceSampleRatio float64 `help:"fraction of traces recorded" default:"1" env:"FUNNEL_TRACE_SAMPLE_RATIO"`

	// Store configuration
	StoreType string        `help:"store type (memory or postgres)" default:"memory" env:"FUNNEL_STORE_TYPE" enum:"memory,postgres"`
	Postgres  PostgresFlags `embed:"" prefix:"postgres-"`
}

type GitHubFlags struct {
	ClientID     string `help:"GitHub client ID, sign-in is disabled when empty" default:"" env:"FUNNEL_GITHUB_CLIENT_ID"`
	ClientSecret string `help:"GitHub client secret" default:"" env:"FUNNEL_GITHUB_CLIENT_SECRET"`
	CallbackURL  string `help:"GitHub callback URL" default:"" env:"FUNNEL_GITHUB_CALLBACK_URL"`
}

func (c *ServeCmd) Validate() error {
	if (c.Cert == "") != (c.Key == "") {
		return errors.New("TLS certificate and key must be given together (--cert and --key)")
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 bytes (--session-secret or FUNNEL_SESSION_SECRET)")
	}
	if c.JWKSURL != "" && c.TokenIssuer == "" {
		return errors.New("--jwks-url needs --token-issuer")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return errors.New("trace sample ratio must be between 0 and 1")
	}
	if _, err := httpmiddleware.NewClientAddr(c.TrustedProxies); err != nil {
		return err
	}
	return nil
}

func setupLogger(globals *Globals) zerolog.Logger {
	return logger.Setup(globals.Debug)
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := setupLogger(globals)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	interceptors := []connect.Interceptor{logger.NewConnectRequests(log)}
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "funnel360",
			Version:     globals.Version,
			SampleRatio: c.TraceSampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			return fmt.Errorf("failed to create OTEL interceptor: %w", err)
		}
		interceptors = append(interceptors, otelInterceptor)
	}

	stores, closeStores, err := openStores(ctx, c.StoreType, &c.Postgres)
	if err != nil {
		return err
	}
	defer closeStores()

	policy := authz.DefaultPolicy()
	if c.PolicyFile != "" {
		if policy, err = authz.LoadPolicy(c.PolicyFile); err != nil {
			return fmt.Errorf("failed to load policy: %w", err)
		}
		log.Info().Str("path", c.PolicyFile).Msg("Loaded authorization policy")
	}
	evaluator := authz.NewEvaluator(policy)

	loader := identity.NewMembershipLoader(stores.Memberships, c.MembershipTTL)

	cookie, err := identity.NewSessionCookie(c.sessionSecret(log), c.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to configure session cookie: %w", err)
	}
	sessions := identity.NewSessionProvider(cookie, stores.Sessions, stores.Principals, loader)

	keyManager, err := c.keyManager(log)
	if err != nil {
		return err
	}

	// Tokens are only issued to browser sessions (and dev callers under --no-auth).
	issuerSessions := identity.Chain{sessions}
	provider := identity.Chain{c.tokenProvider(keyManager, loader), sessions}
	if c.NoAuth {
		log.Warn().Msg("Authentication is disabled (--no-auth). This should only be used in development!")
		header := identity.NewHeaderProvider(loader)
		issuerSessions = append(issuerSessions, header)
		provider = append(provider, header)
	}

	if !c.TeamMembersRequireAuth {
		log.Warn().Msg("Team member listing is open to unauthenticated callers (--team-members-require-auth closes it)")
	}
	svc := service.New(stores, evaluator,
		service.WithMembershipCache(loader),
		service.WithPublicTeamMembers(!c.TeamMembersRequireAuth),
	)

	issuer := oidc.NewHandler(keyManager, issuerSessions, c.BaseURL, c.TokenAudience, oidc.WithTokenTTL(c.TokenTTL))
	log.Info().Str("issuer", c.BaseURL).Str("kid", keyManager.Kid()).Msg("Token issuer initialized")

	var gh *login.Github
	if c.GitHub.ClientID != "" {
		gh, err = login.NewGithub(c.GitHub.ClientID, c.GitHub.ClientSecret, c.GitHub.CallbackURL, cookie, login.Stores{
			Sessions:   stores.Sessions,
			Principals: stores.Principals,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize GitHub OAuth: %w", err)
		}
	} else {
		log.Warn().Msg("GitHub sign-in is disabled (no --github-client-id)")
	}

	clientAddr, err := httpmiddleware.NewClientAddr(c.TrustedProxies)
	if err != nil {
		return err
	}

	handler := server.New(server.Components{
		Service:     svc,
		Evaluator:   evaluator,
		Provider:    provider,
		Sessions:    sessions,
		Login:       gh,
		Issuer:      issuer,
		ClientAddr:  clientAddr,
		Guard:       []guard.Option{guard.WithResolveTimeout(c.ResolveTimeout)},
		RPCOptions:  []connect.HandlerOption{connect.WithInterceptors(interceptors...)},
		CORSOrigins: c.CORSOrigins,
	})

	log.Info().
		Str("addr", c.Listen).
		Bool("tls", c.Cert != "").
		Bool("auth", !c.NoAuth).
		Str("store", c.StoreType).
		Msg("Starting HTTP server")

	return server.Run(ctx,
		server.Configure(c.Listen, handler),
		server.TLS{Cert: c.Cert, Key: c.Key},
		stores.Sessions,
		c.SessionCleanupInterval,
	)
}

func (c *ServeCmd) sessionSecret(log zerolog.Logger) []byte {
	if c.SessionSecret != "" {
		return []byte(c.SessionSecret)
	}
	log.Warn().Msg("No --session-secret given, sessions will not survive a restart")
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return secret
}

func (c *ServeCmd) keyManager(log zerolog.Logger) (*oidc.KeyManager, error) {
	if c.SigningKeyFile != "" {
		km, err := oidc.LoadKeyManager(c.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load token signing key: %w", err)
		}
		return km, nil
	}

	log.Warn().Msg("No --signing-key-file given, issued tokens will not survive a restart")
	km, err := oidc.NewKeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token signing key: %w", err)
	}
	return km, nil
}

// tokenProvider trusts our own issuer unless an external one is configured.
func (c *ServeCmd) tokenProvider(keyManager *oidc.KeyManager, loader *identity.MembershipLoader) *identity.TokenProvider {
	if c.TokenIssuer == "" {
		return identity.NewTokenProvider(c.BaseURL, c.TokenAudience, keyManager, loader)
	}

	jwksURL := c.JWKSURL
	if jwksURL == "" {
		jwksURL = strings.TrimSuffix(c.TokenIssuer, "/") + "/.well-known/jwks.json"
	}
	httpClient := client.NewCachingHTTPClient(c.JWKSCacheDir, 10*time.Second)
	keys := identity.NewJWKSKeySource(jwksURL, httpClient)

	return identity.NewTokenProvider(c.TokenIssuer, c.TokenAudience, keys, loader)
}
