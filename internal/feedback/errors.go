package feedback

import (
	"errors"
	"fmt"
	"time"
)

type ErrorType string

const (
	TypeNetwork    ErrorType = "network"
	TypeStorage    ErrorType = "storage"
	TypeValidation ErrorType = "validation"
	TypeStock      ErrorType = "stock"
	TypePermission ErrorType = "permission"
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Recovery is the action offered to the caller for an error.
type Recovery string

const (
	RecoveryRetry          Recovery = "retry"
	RecoveryClearAndRetry  Recovery = "clear_and_retry"
	RecoveryUserCorrection Recovery = "user_correction"
	RecoveryAutoAdjust     Recovery = "auto_adjust"
	RecoveryReauthenticate Recovery = "reauthenticate"
)

// Error codes used across the cart and checkout services.
const (
	CodeUnknown         = "unknown"
	CodeStorageFailure  = "storage_failure"
	CodeCorruptedState  = "corrupted_state"
	CodeCatalogFailure  = "catalog_unavailable"
	CodeInvalidArgument = "invalid_argument"
	CodeItemNotFound    = "item_not_found"
	CodeProductNotFound = "product_not_found"
	CodeOutOfStock      = "out_of_stock"
	CodeStockAdjusted   = "stock_adjusted"
	CodeEmptySelection  = "empty_selection"
	CodeSessionNotFound = "session_not_found"
	CodeSessionExpired  = "session_expired"
	CodeSessionBlocked  = "checkout_blocked"
	CodeForbidden       = "session_forbidden"
	CodeUnauthenticated = "unauthenticated"
)

type defaults struct {
	severity  Severity
	retryable bool
	recovery  Recovery
}

var policy = map[ErrorType]defaults{
	TypeNetwork:    {SeverityMedium, true, RecoveryRetry},
	TypeStorage:    {SeverityHigh, true, RecoveryClearAndRetry},
	TypeValidation: {SeverityMedium, false, RecoveryUserCorrection},
	TypeStock:      {SeverityMedium, true, RecoveryAutoAdjust},
	TypePermission: {SeverityHigh, false, RecoveryReauthenticate},
}

// CartError is the classified form of every failure that leaves the cart core.
type CartError struct {
	Type      ErrorType `json:"type"`
	Severity  Severity  `json:"severity"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	ProductID string    `json:"product_id,omitempty"`
	Retryable bool      `json:"retryable"`
	Recovery  Recovery  `json:"recovery"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

type Option func(*CartError)

func WithSeverity(s Severity) Option {
	return func(e *CartError) { e.Severity = s }
}

func WithProduct(productID string) Option {
	return func(e *CartError) { e.ProductID = productID }
}

func WithCause(err error) Option {
	return func(e *CartError) { e.Err = err }
}

func WithTimestamp(t time.Time) Option {
	return func(e *CartError) { e.Timestamp = t }
}

func New(t ErrorType, code, message string, opts ...Option) *CartError {
	d := policy[t]
	e := &CartError{
		Type:      t,
		Severity:  d.severity,
		Code:      code,
		Message:   message,
		Retryable: d.retryable,
		Recovery:  d.recovery,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Newf(t ErrorType, code, format string, args ...interface{}) *CartError {
	return New(t, code, fmt.Sprintf(format, args...))
}

func (e *CartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Type, e.Code, e.Message)
}

func (e *CartError) Unwrap() error {
	return e.Err
}

// Propagate reports whether the error must reach the caller for explicit handling.
func (e *CartError) Propagate() bool {
	return e.Severity >= SeverityHigh
}

// Is matches another CartError by type and code, so sentinels like ErrSessionExpired work with errors.Is.
func (e *CartError) Is(target error) bool {
	var t *CartError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type && t.Code == e.Code
}

// As extracts a *CartError from err.
func As(err error) (*CartError, bool) {
	var ce *CartError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func IsType(err error, t ErrorType) bool {
	ce, ok := As(err)
	return ok && ce.Type == t
}
