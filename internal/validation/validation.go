// Package validation registers the custom field rules used by the API's binding tags with gin's
// validator engine.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

// phonePattern is E.164 after separators have been removed.
var phonePattern = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "", "/", "")

// now is replaced in tests.
var now = time.Now

var registerOnce sync.Once
var registerErr error

// Register adds the "phone" and "pastdate" rules to gin's default validator. It is safe to call
// more than once.
func Register() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		if err := v.RegisterValidation("phone", validPhone); err != nil {
			registerErr = err
			return
		}
		registerErr = v.RegisterValidation("pastdate", pastDate)
	})
	return registerErr
}

// NormalizePhone strips the usual visual separators from a phone number, so "+420 123-456 789"
// becomes "+420123456789".
func NormalizePhone(phone string) string {
	return phoneSeparators.Replace(strings.TrimSpace(phone))
}

// ParseDate parses a birthday in the wire format.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

// Describe turns a binding error into a short message for the client.
func Describe(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return "invalid JSON"
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		if fe.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s: %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		} else {
			messages = append(messages, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return "invalid value for " + strings.Join(messages, ", ")
}

func validPhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(NormalizePhone(fl.Field().String()))
}

// pastDate accepts dates strictly before today.
func pastDate(fl validator.FieldLevel) bool {
	date, err := ParseDate(fl.Field().String())
	if err != nil {
		return false
	}
	y, m, d := now().Date()
	return date.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}
