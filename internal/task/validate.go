package task

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate caches struct metadata; safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// An empty time of day means "unscheduled".
	_ = v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, err := time.Parse("15:04", s)
		return err == nil
	})
	// The builtin max counts runes; icons are bounded by encoded size.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return v
}

// Validator exposes the shared validator so transport layers apply the same rules.
func Validator() *validator.Validate {
	return validate
}

// Validate checks field formats and limits.
func (n NewTask) Validate() error {
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	return nil
}

// Validate checks supplied fields. An empty patch is rejected.
func (p Patch) Validate() error {
	if p.IsEmpty() {
		return ErrNoFieldsToUpdate
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	return nil
}

// ValidateMoves checks every move of a reorder request.
func ValidateMoves(moves []Move) error {
	for i, m := range moves {
		if err := validate.Struct(m); err != nil {
			return fmt.Errorf("%w: move %d: %v", ErrInvalidTask, i, err)
		}
	}
	return nil
}
