package jira

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientRetriesRateLimitedReads(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"name":"ci-bot","displayName":"CI Bot","active":true}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "tok", time.Second)
	if client.BaseURL() != srv.URL {
		t.Errorf("expected trailing slash trimmed, got %q", client.BaseURL())
	}

	var me Myself
	if err := client.Get(context.Background(), "/rest/api/2/myself", &me); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if me.DisplayName != "CI Bot" {
		t.Errorf("unexpected user %+v", me)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestAPIErrorMessages(t *testing.T) {
	err := newAPIError(http.StatusBadRequest, http.MethodPut, "/rest/api/2/issue/A-1",
		[]byte(`{"errorMessages":[],"errors":{"customfield_1":"Field does not support update"}}`))
	if err.StatusCode() != http.StatusBadRequest {
		t.Errorf("unexpected status %d", err.StatusCode())
	}
	if err.Errors["customfield_1"] == "" {
		t.Errorf("expected field errors to be decoded, got %+v", err)
	}

	plain := newAPIError(http.StatusBadGateway, http.MethodGet, "/x", []byte("upstream down"))
	if plain.Body != "upstream down" {
		t.Errorf("expected raw body to be kept, got %q", plain.Body)
	}
}
