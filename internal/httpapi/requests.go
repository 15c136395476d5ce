// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

type registerRequest struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token                string `json:"token" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"eqfield=Password"`
}

// fieldErrors maps a JSON field name to its messages.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

// requestError is a malformed or invalid request body.
type requestError struct {
	message string
	fields  fieldErrors
}

func (e *requestError) Error() string { return e.message }

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func (a *API) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &requestError{message: "The request body must be valid JSON."}
	}

	err := a.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := fieldErrors{}
	for _, fe := range verrs {
		fields.add(fieldName(fe), validationMessage(fe))
	}
	return &requestError{message: summarize(fields), fields: fields}
}

// fieldName reports eqfield failures against the field being confirmed.
func fieldName(fe validator.FieldError) string {
	if fe.Tag() == "eqfield" {
		return strings.TrimSuffix(fe.Field(), "_confirmation")
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	field := strings.ReplaceAll(fieldName(fe), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case "min":
		return fmt.Sprintf("The %s field must be at least %s characters.", field, fe.Param())
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("The %s field confirmation does not match.", field)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}

// summarize builds the top-level message from the first error, noting how many more exist.
func summarize(fields fieldErrors) string {
	var first string
	total := 0
	for _, order := range []string{"name", "email", "password", "token"} {
		if msgs, ok := fields[order]; ok && first == "" {
			first = msgs[0]
		}
	}
	for _, msgs := range fields {
		total += len(msgs)
		if first == "" {
			first = msgs[0]
		}
	}
	switch extra := total - 1; {
	case extra == 1:
		return first + " (and 1 more error)"
	case extra > 1:
		return fmt.Sprintf("%s (and %d more errors)", first, extra)
	default:
		return first
	}
}
