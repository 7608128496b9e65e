package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/agentgauge/agentgauge/internal/models"
)

// keywordCriteria are the parameters the keyword evaluator understands.
type keywordCriteria struct {
	// MustContain lists keywords that must appear in the output (case-insensitive).
	MustContain []string `mapstructure:"must_contain"`
	// MustNotContain lists keywords that must NOT appear in the output (case-insensitive).
	MustNotContain []string `mapstructure:"must_not_contain"`
}

// KeywordEvaluator scores output by keyword presence/absence. It is
// deterministic and free, which makes it the default for demo runs and tests.
type KeywordEvaluator struct{}

// NewKeywordEvaluator creates a keyword evaluator.
func NewKeywordEvaluator() *KeywordEvaluator {
	return &KeywordEvaluator{}
}

func (k *KeywordEvaluator) Name() string { return "keyword" }

// Score checks every keyword rule and returns a fractional score with
// pass/fail and reasoning. It fails the evaluation (not the test) when the
// criteria cannot be decoded.
func (k *KeywordEvaluator) Score(ctx context.Context, output string, criteria map[string]any) (*models.Evaluation, error) {
	var c keywordCriteria
	if err := mapstructure.Decode(criteria, &c); err != nil {
		return nil, fmt.Errorf("decoding keyword criteria: %w", err)
	}

	var failures []string
	outputLower := strings.ToLower(output)

	for _, keyword := range c.MustContain {
		if !strings.Contains(outputLower, strings.ToLower(keyword)) {
			failures = append(failures, fmt.Sprintf("missing expected keyword: %s", keyword))
		}
	}

	for _, keyword := range c.MustNotContain {
		if strings.Contains(outputLower, strings.ToLower(keyword)) {
			failures = append(failures, fmt.Sprintf("found forbidden keyword: %s", keyword))
		}
	}

	totalChecks := len(c.MustContain) + len(c.MustNotContain)
	passedChecks := totalChecks - len(failures)

	score := 1.0
	if totalChecks > 0 {
		score = float64(passedChecks) / float64(totalChecks)
	}

	reasoning := "all keyword checks passed"
	if len(failures) > 0 {
		reasoning = strings.Join(failures, "; ")
	}

	return &models.Evaluation{
		Passed:    len(failures) == 0,
		Score:     score,
		Reasoning: reasoning,
	}, nil
}
