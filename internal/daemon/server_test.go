package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/arise/internal/config"
)

// setupTestServer creates a test server backed by a temporary SQLite store
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.SQLitePath = filepath.Join(cfg.DataDir, "arise.db")
	cfg.Port = 0

	server, err := NewServer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	return server
}

func TestHealthEndpoint(t *testing.T) {
	server := setupTestServer(t)
	defer server.Shutdown(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d; want 200", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %q; want healthy", resp["status"])
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	server := setupTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(context.Background(), ln) }()

	url := fmt.Sprintf("http://%s/ready", ln.Addr().String())
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready status = %d; want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("Serve() error = %v; want ErrServerClosed", err)
	}
}

func TestNewServer_InvalidStore(t *testing.T) {
	cfg := config.Default()
	cfg.StoreDriver = config.DriverSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "missing", "dir", "arise.db")

	if _, err := NewServer(context.Background(), cfg); err == nil {
		t.Error("NewServer() should fail when the database cannot be created")
	}
}
