package chat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	cfg := Config{APIKey: "sk-test"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.BaseURL != defaultBaseURL {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.Timeout != defaultTimeout {
		t.Errorf("timeout = %v", cfg.Timeout)
	}
}

func TestConfigValidateMissingKey(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestHTTPTransportSend(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotContentType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	body, err := tr.Send(context.Background(), []byte(`{"model":"gpt-3.5-turbo-0613"}`))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s", gotMethod)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("content-type = %q", gotContentType)
	}
	if string(gotBody) != `{"model":"gpt-3.5-turbo-0613"}` {
		t.Errorf("request body = %s", gotBody)
	}
	if string(body) != `{"choices":[]}` {
		t.Errorf("response body = %s", body)
	}
}

func TestHTTPTransportTrailingSlash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Send(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %s", gotPath)
	}
}

func TestHTTPTransportAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	_, err = tr.Send(context.Background(), []byte(`{}`))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", te.StatusCode)
	}
	if !strings.Contains(te.Body, "rate limited") {
		t.Errorf("body = %q", te.Body)
	}
	if !strings.Contains(te.Error(), "429") {
		t.Errorf("message = %q", te.Error())
	}
}

func TestHTTPTransportMissingKey(t *testing.T) {
	_, err := NewHTTPTransport(Config{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestHTTPTransportContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = tr.Send(ctx, []byte(`{}`))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", err)
	}
}
