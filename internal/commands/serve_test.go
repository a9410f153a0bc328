package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestServeCommand_Structure(t *testing.T) {
	if serveCmd.Use != "serve" {
		t.Errorf("Expected use 'serve', got %s", serveCmd.Use)
	}
	for _, name := range []string{"addr", "token"} {
		if serveCmd.Flags().Lookup(name) == nil {
			t.Errorf("--%s flag not defined", name)
		}
	}
}

func TestRunServe_NeedsLocalStore(t *testing.T) {
	deps := newTestDeps(t, 0)
	deps.Store = nil
	deps.Config.Remote.URL = "http://chats.example:8420"

	err := runServe(context.Background(), deps, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "needs the local database") {
		t.Errorf("expected local database error, got %v", err)
	}
}

func TestRunServe_StopsOnCancel(t *testing.T) {
	deps := newTestDeps(t, 1)

	oldAddr, oldToken := serveAddr, serveToken
	serveAddr, serveToken = "127.0.0.1:0", "secret-token-0123456789"
	t.Cleanup(func() { serveAddr, serveToken = oldAddr, oldToken })

	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, deps, &buf)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not stop after cancel")
	}

	out := buf.String()
	if !strings.Contains(out, "listening on http://127.0.0.1:0") {
		t.Errorf("missing listen line:\n%s", out)
	}
	if strings.Contains(out, "secret-token-0123456789") {
		t.Error("token printed in clear")
	}
	if !strings.Contains(out, "Shutting down...") {
		t.Errorf("missing shutdown line:\n%s", out)
	}
}
