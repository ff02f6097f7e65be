package scoring

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/AllienNova/scaiflutter/internal/session"
)

// HeuristicScorer is a deterministic, dependency-free scoring strategy. It
// scans the payload for known scam vocabulary and derives a stable baseline
// from a payload hash, so identical chunks always score identically. It is
// the injected default when no model backend is configured, and what the
// aggregation tests score with.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

type keywordRule struct {
	weight   float64
	scamType string
	pattern  session.PatternMatch
}

var keywordRules = map[string]keywordRule{
	"urgent": {25, "PHISHING", session.PatternMatch{
		Name: "pressure_tactics", Description: "Urgency or pressure language", Confidence: 0.7}},
	"immediately": {20, "PHISHING", session.PatternMatch{
		Name: "pressure_tactics", Description: "Urgency or pressure language", Confidence: 0.7}},
	"verify": {20, "PHISHING", session.PatternMatch{
		Name: "credential_probe", Description: "Request to verify account or identity details", Confidence: 0.65}},
	"account": {15, "PHISHING", session.PatternMatch{
		Name: "credential_probe", Description: "Request to verify account or identity details", Confidence: 0.65}},
	"giftcard": {35, "TECH_SUPPORT", session.PatternMatch{
		Name: "gift_card_payment", Description: "Payment demanded in gift cards", Confidence: 0.85}},
	"irs": {35, "IRS_SCAM", session.PatternMatch{
		Name: "irs_impersonation", Description: "Claims to be the IRS or tax authority", Confidence: 0.85}},
	"lottery": {30, "LOTTERY_SCAM", session.PatternMatch{
		Name: "lottery_bait", Description: "Unsolicited prize or lottery winnings", Confidence: 0.8}},
	"winner": {25, "LOTTERY_SCAM", session.PatternMatch{
		Name: "lottery_bait", Description: "Unsolicited prize or lottery winnings", Confidence: 0.8}},
	"bitcoin": {30, "INVESTMENT_FRAUD", session.PatternMatch{
		Name: "payment_redirection", Description: "Redirects payment to untraceable rails", Confidence: 0.8}},
	"wire": {20, "INVESTMENT_FRAUD", session.PatternMatch{
		Name: "payment_redirection", Description: "Redirects payment to untraceable rails", Confidence: 0.8}},
	"virus": {25, "TECH_SUPPORT", session.PatternMatch{
		Name: "tech_support_bait", Description: "Claims the victim's computer is infected", Confidence: 0.75}},
	"refund": {20, "TECH_SUPPORT", session.PatternMatch{
		Name: "tech_support_bait", Description: "Claims the victim's computer is infected", Confidence: 0.75}},
}

func (h *HeuristicScorer) Score(_ context.Context, chunk Chunk) (Result, error) {
	if len(chunk.Audio) == 0 {
		return Result{}, ErrInvalidChunk
	}

	matched := make(map[string]keywordRule)
	for _, word := range extractWords(chunk.Audio) {
		if rule, ok := keywordRules[word]; ok {
			if _, seen := matched[rule.pattern.Name]; !seen {
				matched[rule.pattern.Name] = rule
			}
		}
	}

	if len(matched) == 0 {
		// Benign baseline: stable in [0, 35) so retried chunks merge
		// idempotently.
		return Result{
			RiskScore:  float64(payloadHash(chunk.Audio) % 35),
			Confidence: 0.5,
			ScamType:   ScamTypeLegitimate,
		}, nil
	}

	var (
		total    float64
		top      keywordRule
		patterns []session.PatternMatch
	)
	names := make([]string, 0, len(matched))
	for name := range matched {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rule := matched[name]
		total += rule.weight
		patterns = append(patterns, rule.pattern)
		if rule.weight > top.weight {
			top = rule
		}
	}

	score := clampScore(30 + total)
	confidence := clampConfidence(0.5 + 0.1*float64(len(matched)))
	return Result{
		RiskScore:  score,
		Confidence: confidence,
		ScamType:   top.scamType,
		Patterns:   patterns,
	}, nil
}

// extractWords pulls lowercase ASCII word tokens out of the payload. Real
// deployments score audio via the model backend; the heuristic path works on
// whatever transcript-like text is embedded in the bytes.
func extractWords(b []byte) []string {
	var (
		words []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() >= 3 {
			words = append(words, cur.String())
		}
		cur.Reset()
	}
	for _, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			cur.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			cur.WriteByte(c + ('a' - 'A'))
		default:
			flush()
		}
	}
	flush()
	return words
}

func payloadHash(b []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(b)
	return h.Sum32()
}
