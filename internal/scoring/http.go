package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AllienNova/scaiflutter/internal/reliability"
	"github.com/AllienNova/scaiflutter/internal/session"
)

// HTTPScorer posts chunks to an external detection model service and
// normalizes its verdicts. Transient failures are retried with capped
// exponential backoff before surfacing ErrUnavailable.
type HTTPScorer struct {
	url         string
	client      *http.Client
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
}

type HTTPScorerConfig struct {
	URL         string
	MaxAttempts int
	Timeout     time.Duration
}

func NewHTTPScorer(cfg HTTPScorerConfig) *HTTPScorer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPScorer{
		url:         strings.TrimSpace(cfg.URL),
		client:      &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		backoffBase: 200 * time.Millisecond,
		backoffCap:  2 * time.Second,
	}
}

type scoreResponse struct {
	RiskScore  float64 `json:"risk_score"`
	Confidence float64 `json:"confidence"`
	ScamType   string  `json:"scam_type"`
	ErrorCode  string  `json:"error_code"`
	Patterns   []struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
	} `json:"patterns"`
}

func (s *HTTPScorer) Score(ctx context.Context, chunk Chunk) (Result, error) {
	if len(chunk.Audio) == 0 {
		return Result{}, ErrInvalidChunk
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, s.backoffBase, s.backoffCap)
			select {
			case <-ctx.Done():
				return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(wait):
			}
		}

		result, retryable, err := s.post(ctx, chunk)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return Result{}, err
		}
	}
	return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (s *HTTPScorer) post(ctx context.Context, chunk Chunk) (Result, bool, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", fmt.Sprintf("%s-%d.wav", chunk.CallID, chunk.Seq))
	if err != nil {
		return Result{}, false, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(chunk.Audio); err != nil {
		return Result{}, false, fmt.Errorf("write audio part: %w", err)
	}
	_ = mw.WriteField("call_id", chunk.CallID)
	_ = mw.WriteField("seq", strconv.FormatUint(chunk.Seq, 10))
	if chunk.TotalChunks > 0 {
		_ = mw.WriteField("total_chunks", strconv.FormatUint(chunk.TotalChunks, 10))
	}
	if err := mw.Close(); err != nil {
		return Result{}, false, fmt.Errorf("finalize multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return Result{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, false, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		return Result{}, true, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		err := fmt.Errorf("scoring backend status %d: %s", res.StatusCode, string(snippet))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return Result{}, true, err
		}
		if res.StatusCode >= 400 && res.StatusCode < 500 {
			return Result{}, false, fmt.Errorf("%w: %v", ErrInvalidChunk, err)
		}
		return Result{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var parsed scoreResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Result{}, false, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if parsed.ErrorCode != "" {
		err := fmt.Errorf("scoring backend error %q", parsed.ErrorCode)
		if reliability.IsRetryableScoringCode(parsed.ErrorCode) {
			return Result{}, true, err
		}
		return Result{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	result := Result{
		RiskScore:  clampScore(parsed.RiskScore),
		Confidence: clampConfidence(parsed.Confidence),
		ScamType:   strings.TrimSpace(parsed.ScamType),
	}
	if result.ScamType == "" {
		result.ScamType = ScamTypeLegitimate
	}
	for _, p := range parsed.Patterns {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		result.Patterns = append(result.Patterns, session.PatternMatch{
			Name:        p.Name,
			Description: p.Description,
			Confidence:  clampConfidence(p.Confidence),
		})
	}
	return result, false, nil
}
