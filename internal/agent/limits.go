package agent

import "github.com/haasonsaas/agentcore/pkg/models"

// UsageLimits bounds a run. Zero values disable the corresponding limit.
// Limits are checked after each completed step, in declaration order.
type UsageLimits struct {
	// MaxRequests caps the number of model requests (steps).
	MaxRequests int64 `yaml:"max_requests" json:"max_requests,omitempty"`

	MaxInputTokens  int64 `yaml:"max_input_tokens" json:"max_input_tokens,omitempty"`
	MaxOutputTokens int64 `yaml:"max_output_tokens" json:"max_output_tokens,omitempty"`
	MaxTotalTokens  int64 `yaml:"max_total_tokens" json:"max_total_tokens,omitempty"`
}

// Enabled reports whether any limit is set.
func (l UsageLimits) Enabled() bool {
	return l.MaxRequests > 0 || l.MaxInputTokens > 0 || l.MaxOutputTokens > 0 || l.MaxTotalTokens > 0
}

// Check evaluates the limits against the run totals. requests is the number
// of model requests made so far. The first violated limit, in declaration
// order, is returned; nil means the run may continue. Steps with missing
// usage contribute zero and can only trip MaxRequests.
//
// The request limit trips once the budget is spent: MaxRequests=1 stops the
// run after the first request. Token limits trip only when the counter goes
// past the limit, so a run that lands exactly on a token limit continues.
func (l UsageLimits) Check(requests int64, total models.Usage) *LimitExceededError {
	if l.MaxRequests > 0 && requests >= l.MaxRequests {
		return &LimitExceededError{LimitType: LimitRequests, LimitValue: l.MaxRequests, CurrentValue: requests, Snapshot: total}
	}
	if l.MaxInputTokens > 0 && total.InputTokens > l.MaxInputTokens {
		return &LimitExceededError{LimitType: LimitInputTokens, LimitValue: l.MaxInputTokens, CurrentValue: total.InputTokens, Snapshot: total}
	}
	if l.MaxOutputTokens > 0 && total.OutputTokens > l.MaxOutputTokens {
		return &LimitExceededError{LimitType: LimitOutputTokens, LimitValue: l.MaxOutputTokens, CurrentValue: total.OutputTokens, Snapshot: total}
	}
	if l.MaxTotalTokens > 0 && total.TotalTokens > l.MaxTotalTokens {
		return &LimitExceededError{LimitType: LimitTotalTokens, LimitValue: l.MaxTotalTokens, CurrentValue: total.TotalTokens, Snapshot: total}
	}
	return nil
}
