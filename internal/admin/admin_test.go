package admin_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/corvidlabs/reludp/internal/admin"
	"github.com/corvidlabs/reludp/internal/transport"
)

// testPeerAddr is a documentation IP address (RFC 5737) used as peer in tests.
const testPeerAddr = "192.0.2.1:4000"

// noopSender discards every packet; used only to drive a real *transport.Conn
// through its handshake for these handler tests.
type noopSender struct{}

func (noopSender) SendTo(context.Context, netip.AddrPort, []byte) error { return nil }

// setupTestServer builds a *transport.Server with one ESTABLISHED connection
// and returns an http.Client wired to the admin API in front of it.
func setupTestServer(t *testing.T) (*http.Client, string) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	srv := transport.NewServer(noopSender{}, func(*transport.Conn) transport.Handler {
		return nil
	}, logger)

	addr := netip.MustParseAddrPort(testPeerAddr)
	srv.HandleDatagram(synPacket(t), addr)

	h := admin.NewHandler(srv, logger)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	return ts.Client(), ts.URL
}

// synPacket builds a minimal SYN datagram to drive a connection into
// ESTABLISHED via the real wire codec.
func synPacket(t *testing.T) []byte {
	t.Helper()

	// Mirrors internal/wire.Marshal's layout without importing the
	// package's internals: SessionID(0) PacketID(0) Flags(SYN=1<<2).
	return []byte{0x00, 0x00, 0x00, 0x00, 0x04}
}

func TestHandleHealthz(t *testing.T) {
	t.Parallel()

	client, url := setupTestServer(t)

	resp, err := client.Get(url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestHandleListConnections(t *testing.T) {
	t.Parallel()

	client, url := setupTestServer(t)

	resp, err := client.Get(url + "/v1/connections")
	if err != nil {
		t.Fatalf("GET /v1/connections: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var views []struct {
		Peer      string `json:"peer"`
		State     string `json:"state"`
		SessionID uint16 `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(views) != 1 {
		t.Fatalf("len(views) = %d, want 1", len(views))
	}

	if views[0].Peer != testPeerAddr {
		t.Errorf("Peer = %q, want %q", views[0].Peer, testPeerAddr)
	}

	if views[0].State != "ESTABLISHED" {
		t.Errorf("State = %q, want %q", views[0].State, "ESTABLISHED")
	}
}

func TestHandleShowConnectionNotFound(t *testing.T) {
	t.Parallel()

	client, url := setupTestServer(t)

	resp, err := client.Get(url + "/v1/connections/203.0.113.1:4000")
	if err != nil {
		t.Fatalf("GET /v1/connections/...: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestHandleShowConnectionBadAddr(t *testing.T) {
	t.Parallel()

	client, url := setupTestServer(t)

	resp, err := client.Get(url + "/v1/connections/not-an-address")
	if err != nil {
		t.Fatalf("GET /v1/connections/not-an-address: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleShowConnectionFound(t *testing.T) {
	t.Parallel()

	client, url := setupTestServer(t)

	resp, err := client.Get(url + "/v1/connections/" + testPeerAddr)
	if err != nil {
		t.Fatalf("GET /v1/connections/%s: %v", testPeerAddr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
