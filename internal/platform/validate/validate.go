package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var e164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// v is initialised once at package load; custom tags are registered in init.
var v = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// "phone" is stricter than the built-in e164 tag: at least 8 digits.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	})
}

// IsPhone reports whether s is an E.164 number usable as a messaging destination.
func IsPhone(s string) bool {
	return e164.MatchString(s)
}

// Struct validates s using its validate tags and flattens the field errors
// into one message.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s=%s'", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
