package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/policy-search-server/internal/config"
)

func newTestMCPServer() *mcp.Server {
	return mcp.NewServer(&mcp.Implementation{Name: "test", Version: "1.0"}, nil)
}

var basicAuth = config.AuthSettings{
	Type:  config.AuthTypeBasic,
	Basic: config.BasicAuthSettings{Username: "admin", Password: "secret"},
}

func TestNewSSEServer(t *testing.T) {
	tests := []struct {
		name     string
		auth     config.AuthSettings
		wantAddr string
		wantErr  bool
	}{
		{"no auth", config.AuthSettings{Type: config.AuthTypeNone}, "localhost:8080", false},
		{"basic auth", basicAuth, "localhost:8080", false},
		{"api key auth", config.AuthSettings{Type: config.AuthTypeAPIKey, APIKeys: []string{"key1"}}, "localhost:8080", false},
		{"incomplete basic auth", config.AuthSettings{Type: config.AuthTypeBasic}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewSSEServer(newTestMCPServer(), &config.Settings{Host: "localhost", Port: 8080, Auth: tt.auth})
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error for invalid auth settings")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if srv.Addr != tt.wantAddr {
				t.Errorf("Expected addr %q, got %q", tt.wantAddr, srv.Addr)
			}
			if srv.ReadHeaderTimeout != readHeaderTimeout {
				t.Errorf("Expected read header timeout %v, got %v", readHeaderTimeout, srv.ReadHeaderTimeout)
			}
		})
	}
}

func TestNewSSEServer_HealthEndpoint(t *testing.T) {
	srv, err := NewSSEServer(newTestMCPServer(), &config.Settings{Host: "localhost", Port: 8080, Auth: basicAuth})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 for /health without auth, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got '%s'", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		t.Errorf("Unexpected Content-Type %q", rec.Header().Get("Content-Type"))
	}
}

func TestNewSSEServer_SSEEndpointRequiresAuth(t *testing.T) {
	srv, err := NewSSEServer(newTestMCPServer(), &config.Settings{Host: "localhost", Port: 8080, Auth: basicAuth})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/sse", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for /sse without auth, got %d", rec.Code)
	}
}
