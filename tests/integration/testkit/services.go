package testkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/policy-search-server/internal/app"
	"github.com/sha1n/policy-search-server/internal/config"
	"github.com/sha1n/policy-search-server/internal/source"
	"github.com/spf13/pflag"
)

const (
	// PropSourcePath is the source database path published by SourceService
	PropSourcePath = "source_path"
	// PropBaseURL is the HTTP base URL published by ServerService
	PropBaseURL = "base_url"

	readyTimeout = 10 * time.Second
)

// SourceService creates a source database and seeds it on start
type SourceService struct {
	Path  string
	Seed  func(ctx context.Context, store *source.Store) error
	store *source.Store
}

// Start opens the database and runs Seed
func (s *SourceService) Start() (map[string]any, error) {
	store, err := source.NewStore(s.Path)
	if err != nil {
		return nil, err
	}
	s.store = store

	if s.Seed != nil {
		if err := s.Seed(context.Background(), store); err != nil {
			return nil, fmt.Errorf("failed to seed source: %w", err)
		}
	}
	return map[string]any{PropSourcePath: s.Path}, nil
}

// Store returns the open source database
func (s *SourceService) Store() *source.Store {
	return s.store
}

// Stop closes the database
func (s *SourceService) Stop() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// GetName returns the service name
func (s *SourceService) GetName() string {
	return "source"
}

// ServerService runs the SSE server through app.RunWithDeps
type ServerService struct {
	Flags *pflag.FlagSet

	mu     sync.Mutex
	srv    *http.Server
	cancel context.CancelFunc
	done   chan error
}

// Start runs the server in the background and waits for /health
func (s *ServerService) Start() (map[string]any, error) {
	params := app.DefaultRunParams()
	params.StartSSEServer = func(m *mcp.Server, settings *config.Settings) error {
		srv, err := app.NewSSEServer(m, settings)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.srv = srv
		s.mu.Unlock()
		return srv.ListenAndServe()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() {
		s.done <- app.RunWithDeps(ctx, params, s.Flags, "test")
	}()

	host, _ := s.Flags.GetString("host")
	port, _ := s.Flags.GetInt("port")
	baseURL := fmt.Sprintf("http://%s:%d", host, port)

	if err := waitForHealth(baseURL, s.done); err != nil {
		cancel()
		return nil, err
	}
	return map[string]any{PropBaseURL: baseURL}, nil
}

// Stop shuts the HTTP server down and waits for the run loop to return
func (s *ServerService) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-s.done; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// GetName returns the service name
func (s *ServerService) GetName() string {
	return "server"
}

func waitForHealth(baseURL string, done <-chan error) error {
	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-done:
			return fmt.Errorf("server exited before becoming healthy: %w", err)
		default:
		}

		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("server at %s not healthy after %v", baseURL, readyTimeout)
}
