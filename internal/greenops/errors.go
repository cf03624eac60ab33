package greenops

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

// Error kinds shared by every calculator. Callers match them with
// errors.Is; packages wrap them with context via fmt.Errorf("%w: ...").
var (
	// ErrInvalidInput marks malformed or out-of-range arguments.
	ErrInvalidInput = constError("invalid input")

	// ErrNotFound marks an unknown route, tier or catalog key.
	ErrNotFound = constError("not found")

	// ErrInvariantViolation marks reference data that breaks a structural
	// invariant. It is only ever returned at load time.
	ErrInvariantViolation = constError("invariant violation")
)

// kindError is a sentinel that also matches the kind it belongs to.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Unit and arithmetic errors. All of them are also ErrInvalidInput.
var (
	// ErrInvalidUnit indicates an unrecognized carbon unit.
	ErrInvalidUnit error = &kindError{msg: "invalid carbon unit", kind: ErrInvalidInput}

	// ErrNegativeValue indicates a negative carbon value.
	ErrNegativeValue error = &kindError{msg: "negative carbon value", kind: ErrInvalidInput}

	// ErrCalculationOverflow indicates an Inf or NaN intermediate result.
	ErrCalculationOverflow error = &kindError{msg: "calculation overflow", kind: ErrInvalidInput}
)
