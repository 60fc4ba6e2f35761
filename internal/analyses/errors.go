package analyses

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrNotReady  = errors.New("analysis not ready")
	ErrJobFailed = errors.New("analysis failed")
)

const (
	ErrorCodeValidation = "VALIDATION_ERROR"
	ErrorCodeNotFound   = "NOT_FOUND"
	ErrorCodeNotReady   = "NOT_READY"
	ErrorCodeFailed     = "ANALYSIS_FAILED"
	ErrorCodeInternal   = "INTERNAL_ERROR"
)
