/**
 * @description
 * Error taxonomy for the movement orchestrators. Five kinds cross the API
 * boundary: input validation, not-found, insufficient balance, authorization,
 * and collaborator failure. The first four are sentinel or typed errors the
 * transport layer can match with errors.Is/As; anything else is a wrapped
 * collaborator failure.
 */

package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrUnauthorizedAccess is returned when the calling merchant does not own
	// the movement record it tries to mutate.
	ErrUnauthorizedAccess = errors.New("unauthorized access")
)

// ValidationError aggregates every structural failure of a request into one
// error; callers never see partial field-by-field failures.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRequest runs structural validation and collapses the result into a
// single aggregated ValidationError.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s is invalid on tag %s", fe.Field(), fe.Tag()))
	}
	return &ValidationError{Fields: fields}
}

// IsValidationError reports whether err is an aggregated validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
