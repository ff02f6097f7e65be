package scoring

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestHeuristicScorerDeterministic(t *testing.T) {
	s := NewHeuristicScorer()
	chunk := Chunk{CallID: "call-1", Seq: 1, Audio: []byte("please verify your account immediately")}

	first, err := s.Score(context.Background(), chunk)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	second, err := s.Score(context.Background(), chunk)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same payload scored differently: %+v vs %+v", first, second)
	}
}

func TestHeuristicScorerEscalatesOnKeywords(t *testing.T) {
	s := NewHeuristicScorer()

	benign, err := s.Score(context.Background(), Chunk{CallID: "c", Seq: 1, Audio: []byte("hello how are the kids doing")})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if benign.RiskScore >= 40 {
		t.Fatalf("benign score = %v, want < 40", benign.RiskScore)
	}
	if benign.ScamType != ScamTypeLegitimate {
		t.Fatalf("benign scam type = %q", benign.ScamType)
	}

	scam, err := s.Score(context.Background(), Chunk{
		CallID: "c", Seq: 2,
		Audio: []byte("this is the irs you must wire bitcoin immediately"),
	})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scam.RiskScore < 80 {
		t.Fatalf("scam score = %v, want >= 80", scam.RiskScore)
	}
	if scam.ScamType != "IRS_SCAM" {
		t.Fatalf("scam type = %q, want IRS_SCAM", scam.ScamType)
	}
	if len(scam.Patterns) < 2 {
		t.Fatalf("patterns = %+v, want multiple", scam.Patterns)
	}
}

func TestHeuristicScorerEmptyAudio(t *testing.T) {
	s := NewHeuristicScorer()
	if _, err := s.Score(context.Background(), Chunk{CallID: "c", Seq: 1}); !errors.Is(err, ErrInvalidChunk) {
		t.Fatalf("error = %v, want ErrInvalidChunk", err)
	}
}
