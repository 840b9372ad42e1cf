package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrRecordNotFound   = errors.New("record not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNeedsReview      = errors.New("extraction needs review")
	ErrRuleUnavailable  = errors.New("rule unavailable")
	ErrViolation        = errors.New("firewall violation")
	ErrQueueSaturated   = errors.New("queue saturated")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
