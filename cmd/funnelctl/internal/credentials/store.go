// Package credentials keeps named server profiles for funnelctl: where the
// server is, the bearer token to present and the organization to act in.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Sentinel errors
var (
	// ErrCredentialNotFound is returned when a profile doesn't exist.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrNoDefaultCredential is returned when no default is set.
	ErrNoDefaultCredential = errors.New("no default credential set")

	// ErrInvalidName is returned for names that cannot be used as a profile key.
	ErrInvalidName = errors.New("invalid credential name")
)

const configFile = "config.json"

var validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,63}$`)

// Credential is one server profile.
type Credential struct {
	Name           string    `json:"name"`
	Server         string    `json:"server"`
	Token          string    `json:"token,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TokenExpiry reads the exp claim of the stored token without verifying it.
// ok is false when there is no token or it carries no expiry.
func (c *Credential) TokenExpiry() (exp time.Time, ok bool) {
	if c.Token == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Config is the on-disk profile file.
type Config struct {
	Version           int                   `json:"version"`
	DefaultCredential string                `json:"default_credential,omitempty"`
	Credentials       map[string]Credential `json:"credentials"`
}

// Store manages profiles on the local filesystem.
type Store struct {
	baseDir string
	now     func() time.Time
}

// NewStore creates a store under baseDir, or ~/.funnelctl when empty.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".funnelctl")
	}

	// Tokens live here, keep it private.
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	store := &Store{baseDir: baseDir, now: time.Now}

	if err := store.ensureConfig(); err != nil {
		return nil, err
	}

	log.Debug().Str("base_dir", baseDir).Msg("credential store initialized")

	return store, nil
}

// Save creates or replaces a profile. The first profile saved becomes the
// default.
func (s *Store) Save(cred Credential) (*Credential, error) {
	if !validName.MatchString(cred.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, cred.Name)
	}
	cred.Server = strings.TrimRight(cred.Server, "/")

	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	cred.CreatedAt = now
	if existing, ok := cfg.Credentials[cred.Name]; ok {
		cred.CreatedAt = existing.CreatedAt
	}
	cred.UpdatedAt = now

	cfg.Credentials[cred.Name] = cred
	if cfg.DefaultCredential == "" {
		cfg.DefaultCredential = cred.Name
	}

	if err := s.saveConfig(cfg); err != nil {
		return nil, err
	}

	log.Debug().Str("name", cred.Name).Str("server", cred.Server).Msg("credential saved")

	return &cred, nil
}

// Get retrieves a profile by name.
func (s *Store) Get(name string) (*Credential, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	cred, ok := cfg.Credentials[name]
	if !ok {
		return nil, ErrCredentialNotFound
	}

	return &cred, nil
}

// GetDefault retrieves the default profile.
func (s *Store) GetDefault() (*Credential, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.DefaultCredential == "" {
		return nil, ErrNoDefaultCredential
	}

	return s.Get(cfg.DefaultCredential)
}

// Resolve returns the named profile, or the default one when name is empty.
func (s *Store) Resolve(name string) (*Credential, error) {
	if name == "" {
		return s.GetDefault()
	}
	return s.Get(name)
}

// List returns all profiles sorted by name.
func (s *Store) List() ([]Credential, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	credentials := make([]Credential, 0, len(cfg.Credentials))
	for _, cred := range cfg.Credentials {
		credentials = append(credentials, cred)
	}
	slices.SortFunc(credentials, func(a, b Credential) int {
		return strings.Compare(a.Name, b.Name)
	})

	return credentials, nil
}

// Delete removes a profile, clearing the default if it was the default.
func (s *Store) Delete(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Credentials[name]; !ok {
		return ErrCredentialNotFound
	}

	delete(cfg.Credentials, name)
	if cfg.DefaultCredential == name {
		cfg.DefaultCredential = ""
	}

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Debug().Str("name", name).Msg("credential deleted")

	return nil
}

// SetDefault sets the default profile.
func (s *Store) SetDefault(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Credentials[name]; !ok {
		return ErrCredentialNotFound
	}

	cfg.DefaultCredential = name

	return s.saveConfig(cfg)
}

// DefaultName returns the name of the default profile, or "".
func (s *Store) DefaultName() (string, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.DefaultCredential, nil
}

func (s *Store) ensureConfig() error {
	configPath := filepath.Join(s.baseDir, configFile)

	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	return s.saveConfig(&Config{
		Version:     1,
		Credentials: make(map[string]Credential),
	})
}

func (s *Store) loadConfig() (*Config, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, configFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Credentials == nil {
		cfg.Credentials = make(map[string]Credential)
	}

	return &cfg, nil
}

// saveConfig writes the config file atomically.
func (s *Store) saveConfig(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(s.baseDir, configFile)
	tempPath := configPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
