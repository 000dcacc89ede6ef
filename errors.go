package main

import "fmt"

// WrapOperationError wraps err as "failed to {operation}: err".
//
// Example:
//
//	if err := app.Start(ctx); err != nil {
//		return WrapOperationError("start application", err)
//	}
func WrapOperationError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// WrapOperationErrorf is WrapOperationError with a formatted operation.
func WrapOperationErrorf(format string, err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("failed to %s: %w", msg, err)
}
