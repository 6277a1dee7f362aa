package forward

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what happens to the sibling direction when one
// direction fails.
type FailurePolicy int

const (
	// WaitBoth waits for both directions to finish on their own. A failed
	// direction does not interrupt the other.
	WaitBoth FailurePolicy = iota
	// CancelOnFailure closes both streams when the first direction fails,
	// so the sibling's blocked I/O returns and it reports as cancelled.
	CancelOnFailure
)

func (p FailurePolicy) String() string {
	switch p {
	case WaitBoth:
		return "wait"
	case CancelOnFailure:
		return "cancel"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseFailurePolicy maps "wait" or "cancel" to a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wait":
		return WaitBoth, nil
	case "cancel":
		return CancelOnFailure, nil
	default:
		return WaitBoth, fmt.Errorf("invalid failure policy: %q (want wait or cancel)", s)
	}
}
