package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestPostJSONRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		w.Write([]byte(`{"echo":"ok"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, testLogger())

	var out struct {
		Echo string `json:"echo"`
	}
	if err := c.PostJSON(context.Background(), "/things", map[string]string{"a": "b"}, &out); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out.Echo != "ok" {
		t.Errorf("decoded %+v", out)
	}
}

func TestNon2xxSurfacesStatusAndBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte("Your card was declined"))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, testLogger())

	err := c.PostJSON(context.Background(), "/pay", map[string]string{}, nil)
	if err == nil {
		t.Fatal("expected error for 402 response")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error %T, want *StatusError", err)
	}
	if statusErr.Status != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402", statusErr.Status)
	}
	if statusErr.Body != "Your card was declined" {
		t.Errorf("body = %q", statusErr.Body)
	}
}

func TestWithBearerSetsAuthorizationHeader(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Errorf("authorization = %q", got)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, testLogger()).WithBearer("sk_test_123")
	if err := c.GetJSON(context.Background(), "/secure", nil); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
}

func TestGetJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plans" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"plans":[{"id":1}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, testLogger())

	var out struct {
		Plans []struct {
			ID int `json:"id"`
		} `json:"plans"`
	}
	if err := c.GetJSON(context.Background(), "/plans", &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(out.Plans) != 1 || out.Plans[0].ID != 1 {
		t.Errorf("decoded %+v", out)
	}
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := New(srv.URL, time.Minute, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := c.GetJSON(ctx, "/slow", nil); err == nil {
		t.Fatal("expected context deadline error")
	}
}
