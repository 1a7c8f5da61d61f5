package apptype

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is the sentinel wrapped by every ValidationError.
var ErrInvalidArgument = errors.New("invalid argument")

// ValidationError reports a malformed argument rejected before it reaches storage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func requireNonBlank(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "must not be empty")
	}
	return nil
}

// Validate checks an entity input.
func (e EntityInput) Validate() error {
	if err := requireNonBlank("name", e.Name); err != nil {
		return err
	}
	return requireNonBlank("entityType", e.EntityType)
}

// Validate checks an observation addition.
func (o ObservationAddition) Validate() error {
	return requireNonBlank("entityName", o.EntityName)
}

// Validate checks an observation deletion.
func (o ObservationDeletion) Validate() error {
	return requireNonBlank("entityName", o.EntityName)
}

// Validate checks a relation triple.
func (r RelationInput) Validate() error {
	if err := requireNonBlank("from", r.From); err != nil {
		return err
	}
	if err := requireNonBlank("to", r.To); err != nil {
		return err
	}
	return requireNonBlank("relationType", r.RelationType)
}

// ValidateEach runs validate on every item and prefixes failures with the
// item position, e.g. "entities[2].name".
func ValidateEach[T interface{ Validate() error }](field string, items []T) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return invalid(fmt.Sprintf("%s[%d].%s", field, i, ve.Field), ve.Reason)
			}
			return err
		}
	}
	return nil
}

// ValidateNames rejects blank entries in a list of entity names.
func ValidateNames(field string, names []string) error {
	for i, n := range names {
		if err := requireNonBlank(fmt.Sprintf("%s[%d]", field, i), n); err != nil {
			return err
		}
	}
	return nil
}
