package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/AmmannChristian/go-oauth2http/internal/config"
	"github.com/AmmannChristian/go-oauth2http/internal/testutil"
)

type fixture struct {
	apiURL     string
	tokenCalls *atomic.Int32
}

// setup starts a token endpoint and an API server and points the
// configuration environment at them.
func setup(t *testing.T, api http.HandlerFunc) fixture {
	t.Helper()

	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	var calls atomic.Int32
	auth := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("client_id") != "abc" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_client"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"T1","token_type":"Bearer"}`)
	}))
	apiServer := testutil.NewLocalHTTPServer(t, api)

	t.Setenv(config.EnvPrefix+"OAUTH2__TOKEN_ENDPOINT", auth.URL+"/oauth/token")
	t.Setenv(config.EnvPrefix+"OAUTH2__CLIENT_ID", "abc")
	t.Setenv(config.EnvPrefix+"OAUTH2__CLIENT_SECRET", "xyz")
	t.Setenv(config.EnvPrefix+"API__BASE_ADDRESS", apiServer.URL+"/")

	return fixture{apiURL: apiServer.URL, tokenCalls: &calls}
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := New()
	cmd.Writer = &stdout
	cmd.ErrWriter = &stderr
	cmd.Reader = strings.NewReader(stdin)

	err := cmd.Run(context.Background(), append([]string{"oauth2http"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestRequest(t *testing.T) {
	fx := setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		_, _ = io.WriteString(w, r.Method+" "+r.URL.Path+" "+r.Header.Get("X-Test")+" "+string(body))
	})

	out, _, err := run(t, "", "request", "-X", "post", "-H", "X-Test: yes", "-d", "payload", "items")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\n") {
		t.Errorf("expected status line, got %q", out)
	}
	if !strings.Contains(out, "POST /items yes payload") {
		t.Errorf("unexpected body in %q", out)
	}
	if fx.tokenCalls.Load() != 1 {
		t.Errorf("expected 1 token call, got %d", fx.tokenCalls.Load())
	}
}

func TestRequest_DataFromFileAndStdin(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	})

	path := filepath.Join(t.TempDir(), "body.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatalf("write body: %v", err)
	}

	out, _, err := run(t, "", "request", "-X", "PUT", "-d", "@"+path, "items/1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if !strings.Contains(out, `{"from":"file"}`) {
		t.Errorf("expected file body echoed, got %q", out)
	}

	out, _, err = run(t, "from stdin", "request", "-X", "POST", "-d", "@-", "items")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if !strings.Contains(out, "from stdin") {
		t.Errorf("expected stdin body echoed, got %q", out)
	}
}

func TestRequest_Fail(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	out, _, err := run(t, "", "request", "items")
	if err != nil {
		t.Fatalf("non-2xx without --fail should succeed, got %v", err)
	}
	if !strings.Contains(out, "403 Forbidden") {
		t.Errorf("expected 403 status line, got %q", out)
	}

	if _, _, err := run(t, "", "request", "--fail", "items"); err == nil {
		t.Fatal("expected error with --fail")
	}
}

func TestRequest_Errors(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing uri", args: []string{"request"}, wantErr: "missing <uri>"},
		{name: "malformed header", args: []string{"request", "-H", "broken", "items"}, wantErr: "malformed header"},
		{name: "missing body file", args: []string{"request", "-d", "@/nonexistent/body", "items"}, wantErr: "read body file"},
		{name: "bad log format", args: []string{"--log-format", "xml", "request", "items"}, wantErr: "Log.Format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRequest_TokenFailure(t *testing.T) {
	var apiCalls atomic.Int32
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
	})
	t.Setenv(config.EnvPrefix+"OAUTH2__CLIENT_ID", "wrong")

	_, _, err := run(t, "", "request", "items")
	if err == nil || !strings.Contains(err.Error(), "invalid_client") {
		t.Fatalf("expected token exchange error, got %v", err)
	}
	if apiCalls.Load() != 0 {
		t.Errorf("API must not be called without a token, got %d calls", apiCalls.Load())
	}
}

func TestRequest_LogsToErrWriter(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {})

	out, logs, err := run(t, "", "--log-level", "debug", "--log-format", "json", "request", "items")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if strings.Contains(out, "obtained new access token") {
		t.Error("logs must not be written to stdout")
	}
	if !strings.Contains(logs, "obtained new access token") || !strings.Contains(logs, `"level":"DEBUG"`) {
		t.Errorf("expected JSON debug logs, got %q", logs)
	}
}

func TestStream(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/array":
			_, _ = io.WriteString(w, `[ {"id": 1}, {"id": 2} ]`)
		case "/ndjson":
			_, _ = io.WriteString(w, "{\"id\": 1}\n{\"id\": 2}\n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	for _, path := range []string{"array", "ndjson"} {
		t.Run(path, func(t *testing.T) {
			out, _, err := run(t, "", "stream", path)
			if err != nil {
				t.Fatalf("stream failed: %v", err)
			}
			if out != "{\"id\":1}\n{\"id\":2}\n" {
				t.Errorf("unexpected output %q", out)
			}
		})
	}

	_, _, err := run(t, "", "stream", "missing")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSecret(t *testing.T) {
	keyring.MockInit()
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	out, _, err := run(t, "s3cret\n", "secret", "set", "--client-id", "abc")
	if err != nil {
		t.Fatalf("secret set failed: %v", err)
	}
	if !strings.Contains(out, `Secret stored for client "abc"`) {
		t.Errorf("unexpected output %q", out)
	}

	stored, err := config.NewKeyring().Get("abc")
	if err != nil || stored != "s3cret" {
		t.Fatalf("expected stored secret, got %q (%v)", stored, err)
	}

	out, _, err = run(t, "", "secret", "delete", "--client-id", "abc")
	if err != nil {
		t.Fatalf("secret delete failed: %v", err)
	}
	if !strings.Contains(out, "Secret deleted") {
		t.Errorf("unexpected output %q", out)
	}

	out, _, err = run(t, "", "secret", "delete", "--client-id", "abc")
	if err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
	if !strings.Contains(out, "No secret stored") {
		t.Errorf("unexpected output %q", out)
	}

	if _, _, err := run(t, "", "secret", "set", "--client-id", "abc"); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestSecret_UsedByRequest(t *testing.T) {
	keyring.MockInit()
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Header.Get("Authorization"))
	})
	t.Setenv(config.EnvPrefix+"OAUTH2__CLIENT_SECRET", "")

	if err := config.NewKeyring().Set("abc", "xyz"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	out, _, err := run(t, "", "request", "whoami")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if !strings.Contains(out, "Bearer T1") {
		t.Errorf("expected authorized request, got %q", out)
	}
}
