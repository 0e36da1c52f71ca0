// Package profanity validates and cleans leaderboard display names.
package profanity

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	goaway "github.com/TwiN/go-away"
	"github.com/go-playground/validator/v10"

	"trivia-quiz-service/internal/domain"
)

// MaxNameLength bounds display names, in runes.
const MaxNameLength = 32

type nameInput struct {
	Name string `validate:"required,max=32,printable,clean"`
}

// Validator rejects empty, overlong, unprintable and profane names.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("printable", validatePrintable)
	_ = v.RegisterValidation("clean", validateClean)
	return &Validator{validate: v}
}

// Validate returns an error wrapping domain.ErrInvalidName.
func (v *Validator) Validate(name string) error {
	err := v.validate.Struct(nameInput{Name: strings.TrimSpace(name)})
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidName, reason(fieldErrs[0].Tag()))
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidName, err)
}

// Clean masks profane fragments that slipped past Validate.
func (v *Validator) Clean(name string) string {
	return goaway.Censor(strings.TrimSpace(name))
}

func reason(tag string) string {
	switch tag {
	case "required":
		return "name is empty"
	case "max":
		return fmt.Sprintf("name is longer than %d characters", MaxNameLength)
	case "printable":
		return "name contains unprintable characters"
	case "clean":
		return "please choose a different name"
	}
	return tag
}

func validatePrintable(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func validateClean(fl validator.FieldLevel) bool {
	return !goaway.IsProfane(fl.Field().String())
}
