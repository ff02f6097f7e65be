package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newHTTPScorerForTest(url string) *HTTPScorer {
	s := NewHTTPScorer(HTTPScorerConfig{URL: url, MaxAttempts: 3, Timeout: 2 * time.Second})
	s.backoffBase = time.Millisecond
	s.backoffCap = 5 * time.Millisecond
	return s
}

func TestHTTPScorerSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
		}
		if r.FormValue("call_id") != "call-1" || r.FormValue("seq") != "3" {
			t.Errorf("metadata not forwarded: call_id=%q seq=%q", r.FormValue("call_id"), r.FormValue("seq"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"risk_score": 72.5,
			"confidence": 0.9,
			"scam_type":  "PHISHING",
			"patterns": []map[string]any{
				{"name": "credential_probe", "description": "asks for codes", "confidence": 0.8},
			},
		})
	}))
	defer srv.Close()

	s := newHTTPScorerForTest(srv.URL)
	res, err := s.Score(context.Background(), Chunk{CallID: "call-1", Seq: 3, Audio: []byte("pcm")})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if res.RiskScore != 72.5 || res.ScamType != "PHISHING" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Patterns) != 1 || res.Patterns[0].Name != "credential_probe" {
		t.Fatalf("patterns = %+v", res.Patterns)
	}
}

func TestHTTPScorerRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"risk_score": 10.0, "confidence": 0.7})
	}))
	defer srv.Close()

	s := newHTTPScorerForTest(srv.URL)
	res, err := s.Score(context.Background(), Chunk{CallID: "call-1", Seq: 1, Audio: []byte("pcm")})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if res.RiskScore != 10 || res.ScamType != ScamTypeLegitimate {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("backend called %d times, want 3", got)
	}
}

func TestHTTPScorerExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := newHTTPScorerForTest(srv.URL)
	if _, err := s.Score(context.Background(), Chunk{CallID: "c", Seq: 1, Audio: []byte("pcm")}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestHTTPScorerClientErrorIsInvalidChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := newHTTPScorerForTest(srv.URL)
	if _, err := s.Score(context.Background(), Chunk{CallID: "c", Seq: 1, Audio: []byte("pcm")}); !errors.Is(err, ErrInvalidChunk) {
		t.Fatalf("error = %v, want ErrInvalidChunk", err)
	}
}

func TestHTTPScorerUnreachable(t *testing.T) {
	s := newHTTPScorerForTest("http://127.0.0.1:1/analyze")
	if _, err := s.Score(context.Background(), Chunk{CallID: "c", Seq: 1, Audio: []byte("pcm")}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}
