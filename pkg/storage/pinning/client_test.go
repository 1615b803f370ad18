package pinning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mintaro-labs/mintaro-backend/pkg/config"
)

func newTestServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.Header.Get("pinata_api_key") != "key" || r.Header.Get("pinata_secret_api_key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case authPath:
			w.WriteHeader(http.StatusOK)
		case pinFilePath, pinJSONPath:
			_ = json.NewEncoder(w).Encode(map[string]string{"IpfsHash": "QmTestHash"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, &paths
}

func testConfig(baseURL string) config.PinningConfig {
	return config.PinningConfig{
		BaseURL:     baseURL,
		APIKey:      "key",
		APISecret:   "secret",
		GatewayURL:  "https://gateway.example/ipfs",
		MaxUploadMB: 1,
	}
}

func TestNewClientVerifiesCredentials(t *testing.T) {
	server, paths := newTestServer(t)

	client, err := NewClient(context.Background(), testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client == nil {
		t.Fatal("expected client")
	}
	if len(*paths) != 1 || (*paths)[0] != authPath {
		t.Fatalf("expected auth check call, got %v", *paths)
	}
}

func TestNewClientRejectsBadCredentials(t *testing.T) {
	server, _ := newTestServer(t)
	cfg := testConfig(server.URL)
	cfg.APISecret = "wrong"

	if _, err := NewClient(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected auth failure")
	}
}

func TestPinFileReturnsCID(t *testing.T) {
	server, _ := newTestServer(t)
	client, err := NewClient(context.Background(), testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.PinFile(context.Background(), "art.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("pin file: %v", err)
	}
	if result.CID != "QmTestHash" {
		t.Fatalf("unexpected cid %q", result.CID)
	}
	if result.URI != "ipfs://QmTestHash" {
		t.Fatalf("unexpected uri %q", result.URI)
	}
	if result.Size != int64(len("png-bytes")) {
		t.Fatalf("unexpected size %d", result.Size)
	}
}

func TestPinFileEnforcesUploadLimit(t *testing.T) {
	server, _ := newTestServer(t)
	client, err := NewClient(context.Background(), testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	oversized := strings.NewReader(strings.Repeat("x", (1<<20)+1))
	if _, err := client.PinFile(context.Background(), "big.bin", oversized); err == nil {
		t.Fatal("expected upload limit error")
	}
}

func TestPinJSONReturnsCID(t *testing.T) {
	server, _ := newTestServer(t)
	client, err := NewClient(context.Background(), testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.PinJSON(context.Background(), map[string]string{"name": "Genesis"})
	if err != nil {
		t.Fatalf("pin json: %v", err)
	}
	if result.CID != "QmTestHash" {
		t.Fatalf("unexpected cid %q", result.CID)
	}
}

func TestGatewayURI(t *testing.T) {
	client := &Client{gatewayURL: "https://gateway.example/ipfs"}
	if got := client.GatewayURI("QmTestHash"); got != "https://gateway.example/ipfs/QmTestHash" {
		t.Fatalf("unexpected gateway uri %q", got)
	}
	if got := client.GatewayURI(""); got != "" {
		t.Fatalf("expected empty uri for empty cid, got %q", got)
	}
}
