package onboarding

import (
	"errors"
	"fmt"

	"github.com/yoockh/nutricoach/internal/utils"
)

type ErrorKind string

const (
	InvalidOption ErrorKind = "INVALID_OPTION"
	InvalidNumber ErrorKind = "INVALID_NUMBER"
	EmptyAnswer   ErrorKind = "EMPTY_ANSWER"
)

// ValidationError is returned by the normalizer when a raw answer cannot be
// stored. Reason is safe to show to the user.
type ValidationError struct {
	Field  Field
	Kind   ErrorKind
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Field, e.Kind, e.Reason)
}

func invalidOption(f Field, reason string) error {
	return &ValidationError{Field: f, Kind: InvalidOption, Reason: reason}
}

func invalidNumber(f Field, reason string) error {
	return &ValidationError{Field: f, Kind: InvalidNumber, Reason: reason}
}

func emptyAnswer(f Field) error {
	return &ValidationError{Field: f, Kind: EmptyAnswer, Reason: "Necesito una respuesta para continuar."}
}

// AsValidation unwraps err into a *ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsKind reports whether err is a validation error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ve, ok := AsValidation(err)
	return ok && ve.Kind == kind
}

// ErrUnknownStep marks a stored cursor outside [0, StepCount].
var ErrUnknownStep = errors.New("unknown onboarding step")

// IsPersistence reports whether err came from a failed store read or write.
func IsPersistence(err error) bool {
	return utils.IsCode(err, utils.CodeUnavailable)
}
