package agent

import (
	"errors"
	"fmt"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Sentinel errors surfaced by the runtime.
var (
	// ErrNoProvider indicates the agent was configured without a provider.
	ErrNoProvider = errors.New("no provider configured")

	// ErrToolNotFound indicates a call named a tool the agent does not have.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolTimeout indicates a tool execution exceeded its timeout.
	ErrToolTimeout = errors.New("tool execution timeout")

	// ErrApprovalTimeout indicates an approval wait expired.
	ErrApprovalTimeout = errors.New("approval timeout")

	// ErrStreamConsumed indicates a stream was iterated twice.
	ErrStreamConsumed = errors.New("stream already consumed")

	// ErrRunActive indicates Generate/Stream was called on an agent with a
	// run in flight.
	ErrRunActive = errors.New("run already active")
)

// Provider sentinel errors. Implementations wrap these so the loop can
// classify failures without knowing the provider.
var (
	ErrProviderUnavailable    = errors.New("provider unavailable")
	ErrProviderRateLimited    = errors.New("provider rate limited")
	ErrProviderInvalidKey     = errors.New("provider rejected credentials")
	ErrProviderSchemaRejected = errors.New("provider rejected tool schema")
)

// ErrorCode categorizes a tool failure. Codes are stable strings carried on
// tool-error results and stream events.
type ErrorCode string

const (
	ErrCodeAccessDenied       ErrorCode = "access-denied"
	ErrCodeCommandBlocked     ErrorCode = "command-blocked"
	ErrCodeInteractive        ErrorCode = "interactive-not-supported"
	ErrCodeValidationFailed   ErrorCode = "validation-failed"
	ErrCodeExecutionFailed    ErrorCode = "execution-failed"
	ErrCodeTimeout            ErrorCode = "timeout"
	ErrCodeNotFound           ErrorCode = "not-found"
	ErrCodeNetwork            ErrorCode = "network"
	ErrCodeRateLimited        ErrorCode = "rate-limited"
	ErrCodeBrowserMissing     ErrorCode = "browser-cli-missing"
	ErrCodeUsageLimitExceeded ErrorCode = "usage-limit-exceeded"
	ErrCodeCancelled          ErrorCode = "cancelled"
)

// IsRetryable reports whether a failure of this category may succeed on
// retry. Only transient categories qualify.
func (c ErrorCode) IsRetryable() bool {
	switch c {
	case ErrCodeTimeout, ErrCodeNetwork, ErrCodeRateLimited:
		return true
	}
	return false
}

// ToolError is a structured tool failure. It carries the category, the call
// it belongs to, and how many attempts were made.
type ToolError struct {
	Code       ErrorCode
	ToolName   string
	ToolCallID string
	Attempts   int
	Message    string
	Cause      error
}

// NewToolError builds a tool error for the given category.
func NewToolError(code ErrorCode, toolName, message string) *ToolError {
	return &ToolError{Code: code, ToolName: toolName, Message: message}
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tool %s: %s: %s: %v", e.ToolName, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("tool %s: %s: %s", e.ToolName, e.Code, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// WithCallID sets the tool call id and returns the error.
func (e *ToolError) WithCallID(id string) *ToolError {
	e.ToolCallID = id
	return e
}

// WithCause sets the underlying cause and returns the error.
func (e *ToolError) WithCause(err error) *ToolError {
	e.Cause = err
	return e
}

// WithAttempts records how many attempts were made and returns the error.
func (e *ToolError) WithAttempts(n int) *ToolError {
	e.Attempts = n
	return e
}

// CodeOf extracts the error category from err, defaulting to
// execution-failed for unclassified errors.
func CodeOf(err error) ErrorCode {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Code
	}
	switch {
	case errors.Is(err, ErrToolTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrToolNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrProviderRateLimited):
		return ErrCodeRateLimited
	}
	return ErrCodeExecutionFailed
}

// LimitType names a usage limit dimension.
type LimitType string

const (
	LimitRequests     LimitType = "maxRequests"
	LimitInputTokens  LimitType = "maxInputTokens"
	LimitOutputTokens LimitType = "maxOutputTokens"
	LimitTotalTokens  LimitType = "maxTotalTokens"
)

// LimitExceededError reports that a configured usage limit was crossed.
// The loop converts it into a finish with reason "length"; it is surfaced to
// callers inspecting the run error chain.
type LimitExceededError struct {
	LimitType    LimitType
	LimitValue   int64
	CurrentValue int64
	Snapshot     models.Usage
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("usage limit exceeded: %s=%d, current=%d", e.LimitType, e.LimitValue, e.CurrentValue)
}

// IsLimitExceeded reports whether err carries a limit violation.
func IsLimitExceeded(err error) bool {
	var le *LimitExceededError
	return errors.As(err, &le)
}
