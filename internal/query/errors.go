package query

import "errors"

var (
	// ErrEvaluationContextRequired is returned when a comparison references a
	// parameter and no evaluation context was supplied.
	ErrEvaluationContextRequired = errors.New("evaluation context required")

	// ErrUnboundParameter is returned when the evaluation context has no
	// binding for a referenced parameter.
	ErrUnboundParameter = errors.New("unbound parameter")
)

// IsContextRequired reports whether err is (or wraps) ErrEvaluationContextRequired.
func IsContextRequired(err error) bool {
	return errors.Is(err, ErrEvaluationContextRequired)
}
