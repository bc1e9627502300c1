package grpcclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AmmannChristian/go-oauth2http/internal/testutil"
	"github.com/AmmannChristian/go-oauth2http/oauth2client"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func testConfig(tokenURL string) oauth2client.Config {
	return oauth2client.Config{
		GrantType:     oauth2client.GrantClientCredentials,
		TokenEndpoint: tokenURL,
		ClientID:      "client-id",
		ClientSecret:  "secret",
		Scope:         "openid",
	}
}

type recordingLogger struct {
	lines atomic.Int32
}

func (l *recordingLogger) Printf(string, ...any) {
	l.lines.Add(1)
}

func TestBuilder_BuildErrors(t *testing.T) {
	cache := oauth2client.NewTokenCache(oauth2client.NewProvider(testConfig("https://auth.example.com/token")))

	tests := []struct {
		name    string
		builder *Builder
		wantErr string
	}{
		{
			name:    "no address",
			builder: NewBuilder().WithTokenCache(cache),
			wantErr: "grpcclient: server address is required",
		},
		{
			name:    "no token source",
			builder: NewBuilder().WithAddress("localhost:9090"),
			wantErr: "WithTokenCache or WithOAuth2 is required",
		},
		{
			name:    "invalid OAuth2 config",
			builder: NewBuilder().WithAddress("localhost:9090").WithOAuth2(oauth2client.Config{GrantType: oauth2client.GrantClientCredentials}),
			wantErr: "grpcclient: ",
		},
		{
			name:    "missing CA file",
			builder: NewBuilder().WithAddress("localhost:9090").WithTokenCache(cache).WithTLS("/nonexistent/ca.crt", "", "", ""),
			wantErr: "grpcclient: TLS config failed",
		},
		{
			name:    "insecure with TLS",
			builder: NewBuilder().WithAddress("localhost:9090").WithTokenCache(cache).WithTLS("", "", "", "api.internal").WithInsecure(),
			wantErr: "cannot be combined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := tt.builder.Build()
			if err == nil {
				conn.Close()
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuilder_Build_InvalidOAuth2ConfigIsInvalidConfig(t *testing.T) {
	_, err := NewBuilder().
		WithAddress("localhost:9090").
		WithOAuth2(oauth2client.Config{GrantType: oauth2client.GrantClientCredentials}).
		Build()
	if !errors.Is(err, oauth2client.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuilder_TransportCredentials(t *testing.T) {
	dir := t.TempDir()
	caFile := filepath.Join(dir, "ca.crt")
	testutil.WriteTestCACert(t, caFile)

	tests := []struct {
		name     string
		builder  *Builder
		protocol string
	}{
		{name: "default TLS", builder: NewBuilder(), protocol: "tls"},
		{name: "custom CA", builder: NewBuilder().WithTLS(caFile, "", "", "api.internal"), protocol: "tls"},
		{name: "plaintext", builder: NewBuilder().WithInsecure(), protocol: "insecure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := tt.builder.transportCredentials()
			if err != nil {
				t.Fatalf("transportCredentials failed: %v", err)
			}
			if got := creds.Info().SecurityProtocol; got != tt.protocol {
				t.Errorf("expected %q, got %q", tt.protocol, got)
			}
		})
	}
}

func TestBuilder_Build_NoTokenRequestBeforeFirstCall(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, nil)

	conn, err := NewBuilder().
		WithAddress("localhost:9090").
		WithOAuth2(testConfig(server.URL + "/token")).
		WithTokenHTTPClient(server.Client).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer conn.Close()

	if server.RequestCount() != 0 {
		t.Errorf("expected no token request before the first call, got %d", server.RequestCount())
	}
}

func TestBuilder_WithOAuth2_AuthorizesCalls(t *testing.T) {
	rec := &authRecorder{accepted: "mock-access-token"}
	lis := startHealthServer(t, rec)
	server := testutil.NewMockOAuth2Server(t, nil)
	logger := &recordingLogger{}

	conn, err := NewBuilder().
		WithAddress("passthrough:///bufnet").
		WithOAuth2(testConfig(server.URL + "/token")).
		WithTokenHTTPClient(server.Client).
		WithLogger(logger).
		WithInsecure().
		WithDialOptions(bufconnDialer(lis)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	for i := 0; i < 3; i++ {
		if _, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{}); err != nil {
			t.Fatalf("Check %d failed: %v", i, err)
		}
	}

	if got := server.RequestCount(); got != 1 {
		t.Errorf("expected one token request, got %d", got)
	}
	if reqs := server.Requests(); len(reqs) == 1 && reqs[0].Form.Get("grant_type") != "client_credentials" {
		t.Errorf("unexpected grant type: %q", reqs[0].Form.Get("grant_type"))
	}
	if logger.lines.Load() == 0 {
		t.Error("expected the token fetch to be logged")
	}
}

func TestBuilder_SharedTokenCacheAcrossConnections(t *testing.T) {
	rec := &authRecorder{accepted: "T1"}
	lis := startHealthServer(t, rec)

	var fetches atomic.Int32
	cache := oauth2client.NewTokenCache(sequenceProvider(&fetches, "T1"))

	for _, name := range []string{"orders", "billing"} {
		conn := dialBufconn(t, lis, cache)
		if _, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{}); err != nil {
			t.Fatalf("%s: Check failed: %v", name, err)
		}
	}

	if got := fetches.Load(); got != 1 {
		t.Errorf("expected connections to share one token fetch, got %d", got)
	}
}

func TestBuilder_DialOptionsAppliedLast(t *testing.T) {
	var dialed atomic.Bool
	cache := oauth2client.NewTokenCache(oauth2client.ProviderFunc(func(context.Context) (*oauth2client.Token, error) {
		return oauth2client.NewToken("T1", time.Time{}), nil
	}))

	conn, err := NewBuilder().
		WithAddress("passthrough:///unreachable").
		WithTokenCache(cache).
		WithInsecure().
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			dialed.Store(true)
			return nil, errors.New("no route")
		})).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, _ = healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})

	if !dialed.Load() {
		t.Error("custom dialer should have been used")
	}
}

func BenchmarkBuilder_Build(b *testing.B) {
	server := testutil.NewMockOAuth2Server(b, nil)
	cfg := testConfig(server.URL + "/token")
	noop := &http.Client{Transport: server.Client.Transport}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		conn, err := NewBuilder().
			WithAddress("localhost:9090").
			WithOAuth2(cfg).
			WithTokenHTTPClient(noop).
			Build()
		if err != nil {
			b.Fatalf("Build failed: %v", err)
		}
		conn.Close()
	}
}
