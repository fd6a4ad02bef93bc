package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jpalmerr/balanceboard/internal/monitor"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingForwarder captures the last request and returns a canned reply.
type recordingForwarder struct {
	last Request
	resp Response
	err  error
}

func (r *recordingForwarder) Forward(ctx context.Context, req Request) (Response, error) {
	r.last = req
	return r.resp, r.err
}

func TestFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"remaining":120}}`))
	}))
	defer server.Close()

	f := New(nil, testLogger())
	res, err := f.Fetch(context.Background(), monitor.Config{
		ID:   "acct1",
		URL:  server.URL,
		Auth: &monitor.Auth{Type: monitor.AuthAPIKey, APIKey: "k"},
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	got, ok := res.Body.Lookup("data.remaining")
	if !ok {
		t.Fatal("data.remaining not found in decoded body")
	}
	if f, _ := got.Float(); f != 120 {
		t.Errorf("data.remaining = %v, want 120", f)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", res.StatusCode)
	}
}

func TestFetcher_RequestShape(t *testing.T) {
	fw := &recordingForwarder{resp: Response{StatusCode: 200, Body: []byte(`{}`)}}
	f := New(fw, testLogger())

	_, err := f.Fetch(context.Background(), monitor.Config{
		URL:     "https://api.example.com/b",
		Auth:    &monitor.Auth{Type: monitor.AuthBearer, Token: "tok"},
		Timeout: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if fw.last.Method != http.MethodGet {
		t.Errorf("Method = %q, want GET", fw.last.Method)
	}
	if fw.last.URL != "https://api.example.com/b" {
		t.Errorf("URL = %q", fw.last.URL)
	}
	if fw.last.Headers["Authorization"] != "Bearer tok" {
		t.Errorf("Authorization = %q", fw.last.Headers["Authorization"])
	}
	if fw.last.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", fw.last.Timeout)
	}
}

func TestFetcher_DefaultTimeout(t *testing.T) {
	fw := &recordingForwarder{resp: Response{StatusCode: 200, Body: []byte(`{}`)}}
	if _, err := New(fw, testLogger()).Fetch(context.Background(), monitor.Config{URL: "https://x"}); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if fw.last.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", fw.last.Timeout, DefaultTimeout)
	}
}

func TestFetcher_DecodeError(t *testing.T) {
	fw := &recordingForwarder{resp: Response{StatusCode: 200, Body: []byte(`<html>oops</html>`)}}

	_, err := New(fw, testLogger()).Fetch(context.Background(), monitor.Config{URL: "https://x"})

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
}

func TestFetcher_PropagatesTransportError(t *testing.T) {
	want := &TransportError{StatusCode: 500, Body: "boom"}
	fw := &recordingForwarder{err: want}

	_, err := New(fw, testLogger()).Fetch(context.Background(), monitor.Config{URL: "https://x"})
	if !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
	if err.Error() != "HTTP 500: Internal Server Error: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestTransportError_NetworkFailure(t *testing.T) {
	err := &TransportError{Err: errors.New("dial tcp: connection refused")}
	if err.Error() != "request failed: dial tcp: connection refused" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestTransportError_TruncatesBody(t *testing.T) {
	long := make([]byte, maxErrorBodyLen+50)
	for i := range long {
		long[i] = 'x'
	}
	err := &TransportError{StatusCode: 400, Body: string(long)}
	want := "HTTP 400: Bad Request: " + string(long[:maxErrorBodyLen]) + "..."
	if err.Error() != want {
		t.Errorf("Error() length = %d, want %d", len(err.Error()), len(want))
	}
}

func TestTruncate_KeepsRuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short string untouched", "héllo", 10, "héllo"},
		{"ascii cut", "abcdef", 3, "abc..."},
		{"cut inside two-byte rune", "aé", 2, "a..."},
		{"cut inside three-byte rune", "ab€", 4, "ab..."},
		{"cut after full rune", "€uro", 3, "€..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) = %q is not valid UTF-8", tt.in, tt.n, got)
			}
		})
	}
}

func TestTransportError_TruncatesMultibyteBody(t *testing.T) {
	body := strings.Repeat("€", maxErrorBodyLen)
	err := &TransportError{StatusCode: 500, Body: body}
	if msg := err.Error(); !utf8.ValidString(msg) {
		t.Errorf("Error() is not valid UTF-8: %q", msg[len(msg)-10:])
	}
}
