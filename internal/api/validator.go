package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	app_errors "github.com/IMax153/netlify-ai-gateway/internal/errors"
	"github.com/IMax153/netlify-ai-gateway/internal/model"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// getInstance returns the shared validator. Field errors are reported by
// their JSON path ("message.id") so clients can match them to the body they sent.
func getInstance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateChatRequest checks the request envelope and the embedded user
// message. Part contents are checked later, against the chat's schema.
func validateChatRequest(req *model.ChatRequest) error {
	err := getInstance().Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: an unexpected error occurred during validation: %s", app_errors.ErrValidation, err.Error())
	}

	errorMessages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		errorMessages = append(errorMessages, fmt.Sprintf("Field '%s' failed on the '%s' tag", fieldPath(fieldErr), fieldErr.Tag()))
	}
	return fmt.Errorf("%w: %s", app_errors.ErrValidation, strings.Join(errorMessages, "; "))
}

// fieldPath drops the root struct name from the error's namespace.
func fieldPath(fieldErr validator.FieldError) string {
	_, path, found := strings.Cut(fieldErr.Namespace(), ".")
	if !found {
		return fieldErr.Field()
	}
	return path
}
