package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	TypeConfiguration ErrorType = "CONFIGURATION"
	TypeWorkspace     ErrorType = "WORKSPACE"
	TypeGeneration    ErrorType = "GENERATION"
	TypePipeline      ErrorType = "PIPELINE"
	TypeValidation    ErrorType = "VALIDATION"
	TypeInternal      ErrorType = "INTERNAL"
)

// AppError represents a domain-level error with a type and an underlying error
type AppError struct {
	Type       ErrorType
	Message    string
	Context    map[string]interface{}
	Err        error
	Suggestion string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithError creates a new AppError with an underlying error
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Type:       e.Type,
		Message:    e.Message,
		Context:    e.Context,
		Err:        err,
		Suggestion: e.Suggestion,
	}
}

// WithContext creates a new AppError with additional context
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	ctx := make(map[string]interface{})
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &AppError{
		Type:       e.Type,
		Message:    e.Message,
		Context:    ctx,
		Err:        e.Err,
		Suggestion: e.Suggestion,
	}
}

func (e *AppError) WithSuggestion(suggestion string) *AppError {
	return &AppError{
		Type:       e.Type,
		Message:    e.Message,
		Context:    e.Context,
		Err:        e.Err,
		Suggestion: suggestion,
	}
}

// NewAppError creates a new AppError
func NewAppError(t ErrorType, msg string, err error) *AppError {
	return &AppError{
		Type:    t,
		Message: msg,
		Err:     err,
	}
}

// APIError is a failed call against the workspace API. StatusCode is zero
// for transport-level failures; Response holds the parsed error body when
// the service returned one.
type APIError struct {
	AppError
	StatusCode int
	Response   map[string]interface{}
}

func NewAPIError(msg string, statusCode int, response map[string]interface{}) *APIError {
	return &APIError{
		AppError:   AppError{Type: TypeWorkspace, Message: msg},
		StatusCode: statusCode,
		Response:   response,
	}
}

// RateLimitError means the workspace API asked us to slow down and the
// retry budget ran out. RetryAfter carries the last hint from the service.
type RateLimitError struct {
	APIError
	RetryAfter time.Duration
}

func NewRateLimitError(retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		APIError: APIError{
			AppError: AppError{
				Type:       TypeWorkspace,
				Message:    fmt.Sprintf("workspace API rate limit exceeded, retry after %s", retryAfter),
				Suggestion: "Lower the configured rate_limit_per_sec or wait before re-running",
			},
			StatusCode: 429,
		},
		RetryAfter: retryAfter,
	}
}

// NotFoundError means a page, database or block does not exist (or the
// integration has no access to it).
type NotFoundError struct {
	APIError
}

func NewNotFoundError(msg string) *NotFoundError {
	return &NotFoundError{
		APIError: APIError{
			AppError: AppError{
				Type:       TypeWorkspace,
				Message:    msg,
				Suggestion: "Check the ID and make sure the integration is shared with the page",
			},
			StatusCode: 404,
		},
	}
}

// MissingPropertyError means a required property is absent from a workspace
// page or database schema.
type MissingPropertyError struct {
	AppError
	Property  string
	Container string
}

func NewMissingPropertyError(property, container string) *MissingPropertyError {
	return &MissingPropertyError{
		AppError: AppError{
			Type:    TypeWorkspace,
			Message: fmt.Sprintf("property %q not found in %s", property, container),
		},
		Property:  property,
		Container: container,
	}
}

// GenerationError is a failed text-generation call.
type GenerationError struct {
	AppError
}

func NewGenerationError(msg string, err error) *GenerationError {
	return &GenerationError{
		AppError: AppError{Type: TypeGeneration, Message: msg, Err: err},
	}
}

// BudgetExceededError means a hard spend limit was reached. It carries both
// period totals at the time of rejection so callers can report without
// re-reading the ledger.
type BudgetExceededError struct {
	AppError
	DailyCost   float64
	MonthlyCost float64
}

func NewBudgetExceededError(msg string, dailyCost, monthlyCost float64) *BudgetExceededError {
	return &BudgetExceededError{
		AppError: AppError{
			Type:       TypeGeneration,
			Message:    msg,
			Suggestion: "Wait for the next period or raise the limit in the config",
		},
		DailyCost:   dailyCost,
		MonthlyCost: monthlyCost,
	}
}

// DownloadError is a failed content download.
type DownloadError struct {
	AppError
	URL    string
	Reason string
}

func NewDownloadError(url, reason string) *DownloadError {
	return &DownloadError{
		AppError: AppError{
			Type:    TypePipeline,
			Message: fmt.Sprintf("failed to download %s: %s", url, reason),
		},
		URL:    url,
		Reason: reason,
	}
}

// TranscriptionError is a failed transcription of downloaded content.
type TranscriptionError struct {
	AppError
	Path   string
	Reason string
}

func NewTranscriptionError(path, reason string) *TranscriptionError {
	return &TranscriptionError{
		AppError: AppError{
			Type:    TypePipeline,
			Message: fmt.Sprintf("failed to transcribe %s: %s", path, reason),
		},
		Path:   path,
		Reason: reason,
	}
}

// ValidationError is a failed data validation.
type ValidationError struct {
	AppError
	Field string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{
		AppError: AppError{
			Type:    TypeValidation,
			Message: fmt.Sprintf("validation error for %q: %s", field, msg),
		},
		Field: field,
	}
}

// IsNotFound reports whether err is a workspace not-found failure.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsRateLimit reports whether err is an exhausted rate-limit retry.
func IsRateLimit(err error) bool {
	var target *RateLimitError
	return errors.As(err, &target)
}

// IsBudgetExceeded reports whether err is a hard budget rejection.
func IsBudgetExceeded(err error) bool {
	var target *BudgetExceededError
	return errors.As(err, &target)
}

// Configuration errors
var (
	ErrWorkspaceKeyMissing = NewAppError(TypeConfiguration, "workspace API key is missing", nil).
				WithSuggestion("Set NOTION_API_KEY or fill notion_api_key in config.yaml")

	ErrGenerationKeyMissing = NewAppError(TypeConfiguration, "generation API key is missing", nil).
				WithSuggestion("Set GEMINI_API_KEY or fill gemini_api_key in config.yaml")
)
