package integration

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/policy-search-server/internal/app"
	"github.com/sha1n/policy-search-server/internal/config"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/source"
	"github.com/sha1n/policy-search-server/tests/integration/testkit"
)

const eventuallyTimeout = 15 * time.Second

var acme = domain.Tenant{ID: uuid.New(), Alias: "acme"}

func nowTicks() int64 {
	return domain.TicksFromTime(time.Now())
}

func newQuote(number, state string, modified int64) domain.QuoteWriteModel {
	return domain.QuoteWriteModel{
		ID:                uuid.New(),
		TenantID:          acme.ID,
		OrganisationID:    uuid.New(),
		ProductID:         uuid.New(),
		QuoteNumber:       number,
		QuoteTitle:        "Home cover",
		QuoteState:        state,
		CreatedTicks:      modified,
		LastModifiedTicks: modified,
		Customer:          domain.CustomerDetails{FullName: "Jane Citizen", Email: "jane@example.com"},
	}
}

// seedAcme writes two production quotes and one production policy
func seedAcme(ctx context.Context, store *source.Store) error {
	if err := store.SaveTenant(ctx, acme); err != nil {
		return err
	}

	now := nowTicks()
	for _, q := range []domain.QuoteWriteModel{
		newQuote("Q-1001", "Incomplete", now),
		newQuote("Q-1002", "Complete", now+1),
	} {
		if err := store.SaveQuote(ctx, domain.Production, q); err != nil {
			return err
		}
	}

	return store.SavePolicy(ctx, domain.Production, domain.PolicyWriteModel{
		ID:                uuid.New(),
		TenantID:          acme.ID,
		OrganisationID:    uuid.New(),
		ProductID:         uuid.New(),
		PolicyNumber:      "P-2001",
		PolicyState:       "Issued",
		CreatedTicks:      now,
		LastModifiedTicks: now,
		Transactions: []domain.PolicyTransactionWriteModel{
			{ID: uuid.New(), CreatedTicks: now},
		},
	})
}

// startEnv starts a seeded source and an SSE server over it
func startEnv(t *testing.T, opts testkit.FlagOptions) (*testkit.SourceService, string) {
	t.Helper()

	src := &testkit.SourceService{
		Path: filepath.Join(t.TempDir(), "source.db"),
		Seed: seedAcme,
	}
	opts.SourcePath = src.Path
	srv := &testkit.ServerService{Flags: testkit.NewTestFlags(t, &opts)}

	env := testkit.NewTestEnv(src, srv)
	props, err := env.Start()
	if err != nil {
		_ = env.Stop()
		t.Fatalf("Failed to start test environment: %v", err)
	}
	t.Cleanup(func() {
		if err := env.Stop(); err != nil {
			t.Errorf("Failed to stop test environment: %v", err)
		}
	})

	return src, props[testkit.PropBaseURL].(string)
}

// connect opens an MCP client session against the SSE endpoint
func connect(t *testing.T, baseURL string, client *http.Client) *mcp.ClientSession {
	t.Helper()

	c := mcp.NewClient(&mcp.Implementation{Name: "integration", Version: "1.0"}, nil)
	session, err := c.Connect(context.Background(), &mcp.SSEClientTransport{
		Endpoint:   baseURL + "/sse",
		HTTPClient: client,
	}, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool %s failed: %v", name, err)
	}
	return extractTextContent(result), result.IsError
}

// eventually polls the tool until its output contains want
func eventually(t *testing.T, session *mcp.ClientSession, name string, args map[string]any, want string) string {
	t.Helper()

	deadline := time.Now().Add(eventuallyTimeout)
	var text string
	for time.Now().Before(deadline) {
		text, _ = callTool(t, session, name, args)
		if strings.Contains(text, want) {
			return text
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("Expected %s output to contain %q, last output:\n%s", name, want, text)
	return ""
}

func acmeArgs(extra map[string]any) map[string]any {
	args := map[string]any{"tenant_alias": "acme", "environment": "production"}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

func TestMCPServer_ToolsRegistered(t *testing.T) {
	_, baseURL := startEnv(t, testkit.FlagOptions{})
	session := connect(t, baseURL, nil)

	tools, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	found := make(map[string]bool)
	for _, tool := range tools.Tools {
		found[tool.Name] = true
	}
	for _, name := range []string{"search_quotes", "search_policies", "index_status"} {
		if !found[name] {
			t.Errorf("Expected tool %q to be registered", name)
		}
	}
}

func TestSearch_NothingIndexedBeforeSync(t *testing.T) {
	_, baseURL := startEnv(t, testkit.FlagOptions{})
	session := connect(t, baseURL, nil)

	text, isError := callTool(t, session, "search_quotes", acmeArgs(nil))
	if isError {
		t.Fatalf("Unexpected error result: %s", text)
	}
	if !strings.Contains(text, "No quotes found for acme/Production") {
		t.Errorf("Expected empty result, got:\n%s", text)
	}
}

func TestBackgroundSync_IndexesSourceAndPicksUpChanges(t *testing.T) {
	src, baseURL := startEnv(t, testkit.FlagOptions{SyncInterval: 100 * time.Millisecond})
	session := connect(t, baseURL, nil)

	text := eventually(t, session, "search_quotes", acmeArgs(nil), "Found 2 quotes")
	for _, number := range []string{"Q-1001", "Q-1002"} {
		if !strings.Contains(text, number) {
			t.Errorf("Expected %s in results:\n%s", number, text)
		}
	}

	// Status filters narrow the page
	text, _ = callTool(t, session, "search_quotes", acmeArgs(map[string]any{"statuses": []string{"Complete"}}))
	if !strings.Contains(text, "Q-1002") || strings.Contains(text, "Q-1001") {
		t.Errorf("Expected only the complete quote:\n%s", text)
	}

	eventually(t, session, "search_policies", acmeArgs(nil), "P-2001")

	// A quote written after the first sync is picked up incrementally
	late := newQuote("Q-1003", "Review", nowTicks()+10_000_000)
	if err := src.Store().SaveQuote(context.Background(), domain.Production, late); err != nil {
		t.Fatalf("Failed to save quote: %v", err)
	}
	eventually(t, session, "search_quotes", acmeArgs(map[string]any{"search_terms": []string{"Q-1003"}}), "Q-1003")

	status := eventually(t, session, "index_status", acmeArgs(nil), "- **Documents**: 3")
	if !strings.Contains(status, "Last sync:") {
		t.Errorf("Expected sync state in status:\n%s", status)
	}
}

func TestSyncCommandThenServe(t *testing.T) {
	dir := t.TempDir()
	indexDir := filepath.Join(dir, "indexes")
	src := &testkit.SourceService{Path: filepath.Join(dir, "source.db"), Seed: seedAcme}
	if _, err := src.Start(); err != nil {
		t.Fatalf("Failed to seed source: %v", err)
	}
	defer func() { _ = src.Stop() }()

	flags := testkit.NewTestFlags(t, &testkit.FlagOptions{IndexBaseDir: indexDir, SourcePath: src.Path})
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if err := app.SyncOnce(context.Background(), settings); err != nil {
		t.Fatalf("SyncOnce failed: %v", err)
	}

	count, err := app.Regenerate(context.Background(), settings, "acme", "production", "policy")
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 regenerated policy, got %d", count)
	}

	srv := &testkit.ServerService{Flags: testkit.NewTestFlags(t, &testkit.FlagOptions{IndexBaseDir: indexDir})}
	props, err := srv.Start()
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer func() { _ = srv.Stop() }()

	// Without a source the tools address indexes by alias alone
	session := connect(t, props[testkit.PropBaseURL].(string), nil)
	text, _ := callTool(t, session, "search_quotes", acmeArgs(nil))
	if !strings.Contains(text, "Found 2 quotes for acme/Production") {
		t.Errorf("Expected synced quotes to be searchable:\n%s", text)
	}
	text, _ = callTool(t, session, "search_policies", acmeArgs(nil))
	if !strings.Contains(text, "P-2001") {
		t.Errorf("Expected regenerated policy to be searchable:\n%s", text)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	_, baseURL := startEnv(t, testkit.FlagOptions{AuthType: "apikey", APIKeys: []string{"s3cret"}})

	resp, err := http.Get(baseURL + "/sse")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a key, got %d", resp.StatusCode)
	}

	client := &http.Client{Transport: apiKeyTransport{key: "s3cret"}}
	session := connect(t, baseURL, client)
	text, isError := callTool(t, session, "search_quotes", acmeArgs(map[string]any{"sort_by": "Nope"}))
	if !isError || !strings.Contains(text, "Invalid request") {
		t.Errorf("Expected validation error through the authenticated session, got:\n%s", text)
	}
}

type apiKeyTransport struct {
	key string
}

func (a apiKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+a.key)
	return http.DefaultTransport.RoundTrip(r)
}

func extractTextContent(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}
