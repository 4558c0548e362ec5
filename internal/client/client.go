package client

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/funnelhq/funnel360/internal/rpc"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
	Debug     bool
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server URL is required")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return errors.New("server URL must start with http:// or https://")
	}
	return nil
}

// Clients holds the Connect clients for the record services.
type Clients struct {
	CreateClient  *connect.Client[rpc.CreateClientRequest, rpc.CreateClientResponse]
	ListClients   *connect.Client[rpc.ListClientsRequest, rpc.ListClientsResponse]
	CreateProject *connect.Client[rpc.CreateProjectRequest, rpc.CreateProjectResponse]
	ListProjects  *connect.Client[rpc.ListProjectsRequest, rpc.ListProjectsResponse]
}

// NewClients creates Connect clients speaking the JSON codec.
func NewClients(config Config, opts ...connect.ClientOption) (*Clients, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
	}

	baseURL := strings.TrimRight(config.ServerURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(rpc.JSONCodec{})}, opts...)

	return &Clients{
		CreateClient: connect.NewClient[rpc.CreateClientRequest, rpc.CreateClientResponse](
			httpClient, baseURL+rpc.CreateClientProcedure, opts...),
		ListClients: connect.NewClient[rpc.ListClientsRequest, rpc.ListClientsResponse](
			httpClient, baseURL+rpc.ListClientsProcedure, opts...),
		CreateProject: connect.NewClient[rpc.CreateProjectRequest, rpc.CreateProjectResponse](
			httpClient, baseURL+rpc.CreateProjectProcedure, opts...),
		ListProjects: connect.NewClient[rpc.ListProjectsRequest, rpc.ListProjectsResponse](
			httpClient, baseURL+rpc.ListProjectsProcedure, opts...),
	}, nil
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   30 * time.Second,
		Debug:     false,
	}
}
