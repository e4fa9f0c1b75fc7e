package companion

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what a cycle does when the text completion fails.
type FailurePolicy string

const (
	// PolicySilent drops the cycle; only a log line records the failure.
	PolicySilent FailurePolicy = "silent"
	// PolicyInjectErrorTurn appends the persona's apology line with a sad mood.
	PolicyInjectErrorTurn FailurePolicy = "inject-error-turn"
	// PolicyRetryOnce repeats the request once, then behaves like PolicySilent.
	PolicyRetryOnce FailurePolicy = "retry-once"
)

// ParseFailurePolicy 解析配置中的失败策略，空值回退为 silent。
func ParseFailurePolicy(raw string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PolicySilent, nil
	case PolicySilent, PolicyInjectErrorTurn, PolicyRetryOnce:
		return p, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", raw)
	}
}
