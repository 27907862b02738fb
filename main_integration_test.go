package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/insect-id/internal/auth"
	"github.com/example/insect-id/internal/handlers"
	"github.com/example/insect-id/internal/identifier"
	"github.com/example/insect-id/internal/repository"
	"github.com/example/insect-id/internal/store"
	"github.com/example/insect-id/internal/usecase"
)

const integrationSecret = "integration-secret"

// blockingIdentifier holds each request until release is closed.
type blockingIdentifier struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingIdentifier) Identify(ctx context.Context, _ string) (*identifier.Identification, error) {
	select {
	case <-b.started:
	default:
		close(b.started)
	}
	<-b.release
	return &identifier.Identification{Record: identifier.FallbackCatalog()[1], Source: identifier.SourceModel}, nil
}

func newIntegrationRouter(id identifier.Identifier) (*gin.Engine, *store.Store) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	st := store.New(repository.NewMemoryKV(), store.DefaultHistoryLimit, logger)
	stores := func(deviceID string) usecase.HistoryStore { return st.ForDevice(deviceID) }
	uc := usecase.NewIdentificationUseCase(id, stores, usecase.NewGenerationTracker(time.Minute), nil, logger)

	router := gin.New()
	router.MaxMultipartMemory = handlers.MaxUploadSize
	handlers.RegisterRoutes(router, uc, auth.JWTMiddleware(integrationSecret, ""), handlers.Config{})
	return router, st
}

func TestServerGracefulShutdown(t *testing.T) {
	logger := zap.NewNop()

	id := &blockingIdentifier{started: make(chan struct{}), release: make(chan struct{})}
	defer func() {
		select {
		case <-id.release:
		default:
			close(id.release)
		}
	}()
	router, st := newIntegrationRouter(id)

	t.Log("creating listener")
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	server := &http.Server{Handler: router}

	signalCh := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- serveHTTPServerWithOptions(server, 2*time.Second, logger, listener, signalCh)
	}()

	addr := listener.Addr().String()
	t.Logf("listening on %s", addr)
	waitForServer(t, addr)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "device-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(integrationSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	respCh := make(chan *http.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		t.Log("sending request")
		req, err := http.NewRequest(http.MethodPost, "http://"+addr+"/identify",
			strings.NewReader(`{"image":"data:image/png;base64,QUJD"}`))
		if err != nil {
			errCh <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := client.Do(req)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()

	select {
	case <-id.started:
		t.Log("request started")
	case <-time.After(2 * time.Second):
		t.Fatal("request did not start in time")
	}

	t.Log("sending signal")
	signalCh <- syscall.SIGTERM

	time.Sleep(50 * time.Millisecond)
	close(id.release)
	t.Log("released request")

	select {
	case resp := <-respCh:
		t.Cleanup(func() { resp.Body.Close() })
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			t.Fatalf("unexpected status: %d body: %s", resp.StatusCode, string(body))
		}
	case err := <-errCh:
		t.Fatalf("request failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("request did not complete")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server did not shutdown cleanly: %v", err)
		}
		t.Log("server shutdown complete")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not exit after shutdown")
	}

	if history := st.ForDevice("device-1").GetHistory(context.Background()); len(history) != 1 {
		t.Fatalf("expected the in-flight identification to be stored, got %d entries", len(history))
	}
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server %s did not become ready", addr)
}
