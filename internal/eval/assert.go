// Package eval runs assertion suites against agents and reports results.
package eval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Assertion checks one property of a run result.
type Assertion struct {
	Name  string
	Check func(result *models.RunResult) (bool, string)
}

// ToolCalled asserts the named tool was called at least once.
func ToolCalled(name string) Assertion {
	return Assertion{
		Name: fmt.Sprintf("toolCalled(%s)", name),
		Check: func(r *models.RunResult) (bool, string) {
			if r.ToolCallsNamed(name) > 0 {
				return true, ""
			}
			return false, fmt.Sprintf("tool %q was never called", name)
		},
	}
}

// NoToolCalled asserts the named tool was never called.
func NoToolCalled(name string) Assertion {
	return Assertion{
		Name: fmt.Sprintf("noToolCalled(%s)", name),
		Check: func(r *models.RunResult) (bool, string) {
			if n := r.ToolCallsNamed(name); n > 0 {
				return false, fmt.Sprintf("tool %q was called %d times", name, n)
			}
			return true, ""
		},
	}
}

// ToolCalledTimes asserts an exact call count for the named tool.
func ToolCalledTimes(name string, want int) Assertion {
	return Assertion{
		Name: fmt.Sprintf("toolCalledTimes(%s, %d)", name, want),
		Check: func(r *models.RunResult) (bool, string) {
			if got := r.ToolCallsNamed(name); got != want {
				return false, fmt.Sprintf("tool %q called %d times, want %d", name, got, want)
			}
			return true, ""
		},
	}
}

// OutputContains asserts the final text contains substr.
func OutputContains(substr string) Assertion {
	return Assertion{
		Name: fmt.Sprintf("outputContains(%q)", substr),
		Check: func(r *models.RunResult) (bool, string) {
			if strings.Contains(r.Text, substr) {
				return true, ""
			}
			return false, fmt.Sprintf("output does not contain %q", substr)
		},
	}
}

// OutputMatches asserts the final text matches the regular expression.
func OutputMatches(pattern string) Assertion {
	re := regexp.MustCompile(pattern)
	return Assertion{
		Name: fmt.Sprintf("outputMatches(%s)", pattern),
		Check: func(r *models.RunResult) (bool, string) {
			if re.MatchString(r.Text) {
				return true, ""
			}
			return false, fmt.Sprintf("output does not match %s", pattern)
		},
	}
}

// StepCount asserts the run took at least min steps, and at most max when a
// max is given. StepCount(n, n) pins an exact count.
func StepCount(min int, max ...int) Assertion {
	name := fmt.Sprintf("stepCount(%d)", min)
	if len(max) > 0 {
		name = fmt.Sprintf("stepCount(%d, %d)", min, max[0])
	}
	return Assertion{
		Name: name,
		Check: func(r *models.RunResult) (bool, string) {
			got := r.StepCount()
			if got < min {
				return false, fmt.Sprintf("run took %d steps, want at least %d", got, min)
			}
			if len(max) > 0 && got > max[0] {
				return false, fmt.Sprintf("run took %d steps, want at most %d", got, max[0])
			}
			return true, ""
		},
	}
}

// TokenUsage asserts total token usage does not exceed maxTotal.
func TokenUsage(maxTotal int64) Assertion {
	return Assertion{
		Name: fmt.Sprintf("tokenUsage(%d)", maxTotal),
		Check: func(r *models.RunResult) (bool, string) {
			if r.TotalUsage.TotalTokens <= maxTotal {
				return true, ""
			}
			return false, fmt.Sprintf("used %d tokens, limit %d", r.TotalUsage.TotalTokens, maxTotal)
		},
	}
}

// Custom wraps an arbitrary predicate as an assertion.
func Custom(name string, check func(result *models.RunResult) (bool, string)) Assertion {
	return Assertion{Name: name, Check: check}
}
