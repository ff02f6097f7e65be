package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AllienNova/scaiflutter/internal/session"
)

type scorerFunc func(ctx context.Context, chunk Chunk) (Result, error)

func (f scorerFunc) Score(ctx context.Context, chunk Chunk) (Result, error) { return f(ctx, chunk) }

func TestAdapterRejectsInvalidUploads(t *testing.T) {
	a := NewAdapter(NewHeuristicScorer(), time.Second)

	cases := map[string]Chunk{
		"missing call id": {Seq: 1, Audio: []byte("hello")},
		"empty audio":     {CallID: "call-1", Seq: 1},
		"malformed wav":   {CallID: "call-1", Seq: 1, Audio: []byte("RIFF\x10\x00\x00\x00WAVEjunk")},
	}
	for name, chunk := range cases {
		if _, err := a.Score(context.Background(), chunk); !errors.Is(err, ErrInvalidChunk) {
			t.Fatalf("%s: error = %v, want ErrInvalidChunk", name, err)
		}
	}
}

func TestAdapterTimeoutBecomesUnavailable(t *testing.T) {
	slow := scorerFunc(func(ctx context.Context, _ Chunk) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	a := NewAdapter(slow, 20*time.Millisecond)

	_, err := a.Score(context.Background(), Chunk{CallID: "call-1", Seq: 1, Audio: []byte("payload")})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestAdapterNormalizesResult(t *testing.T) {
	backend := scorerFunc(func(_ context.Context, _ Chunk) (Result, error) {
		return Result{
			RiskScore:  150, // out of range, must clamp
			Confidence: 2,
			ScamType:   "PHISHING",
			Patterns:   []session.PatternMatch{{Name: "credential_probe", Confidence: 0.6}},
		}, nil
	})
	a := NewAdapter(backend, time.Second)

	res, err := a.Score(context.Background(), Chunk{CallID: "call-1", Seq: 7, Audio: []byte("payload")})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if res.CallID != "call-1" || res.Seq != 7 {
		t.Fatalf("identity not carried: %+v", res)
	}
	if res.RiskScore != 100 || res.Confidence != 1 {
		t.Fatalf("values not clamped: %+v", res)
	}
	if res.ObservedAt.IsZero() {
		t.Fatalf("ObservedAt not stamped")
	}
	if len(res.Patterns) != 1 || res.Patterns[0].Name != "credential_probe" {
		t.Fatalf("patterns not carried: %+v", res.Patterns)
	}
}

func TestAdapterWrapsBackendErrors(t *testing.T) {
	broken := scorerFunc(func(_ context.Context, _ Chunk) (Result, error) {
		return Result{}, errors.New("connection refused")
	})
	a := NewAdapter(broken, time.Second)

	_, err := a.Score(context.Background(), Chunk{CallID: "call-1", Seq: 1, Audio: []byte("payload")})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}
