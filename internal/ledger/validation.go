package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docsort/docsort/internal/model"
)

// Validation and state errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrInvalidTransition = errors.New("invalid operation status transition")
	ErrAlreadyClaimed    = errors.New("review item already claimed")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateOperation validates an operation before it is recorded.
func validateOperation(op *model.Operation) error {
	if op == nil {
		return fmt.Errorf("%w: operation", ErrNilParameter)
	}
	if err := op.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	return nil
}

// validateReviewItem validates a review queue entry.
func validateReviewItem(item *model.ReviewItem) error {
	if item == nil {
		return fmt.Errorf("%w: review item", ErrNilParameter)
	}
	if item.DocumentID == "" {
		return fmt.Errorf("%w: review item document ID is required", ErrInvalidOperation)
	}
	return nil
}
