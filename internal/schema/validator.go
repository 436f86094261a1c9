// Package schema validates inbound provider callbacks and outbound events.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists every offending field with a short reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindObject
)

type fieldRule struct {
	name     string
	kind     fieldKind
	required bool
}

// callbackFields mirrors the provider callback contract. Optional fields
// may be absent or null.
var callbackFields = []fieldRule{
	{name: "name", kind: kindString, required: true},
	{name: "status", kind: kindString, required: true},
	{name: "transcript", kind: kindObject},
	{name: "error_message", kind: kindString},
	{name: "error_type", kind: kindString},
}

type Validator struct {
	validate *validator.Validate
	rules    map[string]interface{}
}

func New() *Validator {
	rules := make(map[string]interface{})
	for _, f := range callbackFields {
		if f.required {
			rules[f.name] = "required"
		}
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{
		validate: validate,
		rules:    rules,
	}
}

// ValidateCallback enforces the callback body shape and returns a
// *ValidationError naming every missing or wrong-typed field.
func (v *Validator) ValidateCallback(body map[string]any) error {
	fields := make(map[string]string)

	for field := range v.validate.ValidateMap(body, v.rules) {
		fields[field] = "is required"
	}

	for _, f := range callbackFields {
		if _, failed := fields[f.name]; failed {
			continue
		}
		val, present := body[f.name]
		if !present || val == nil {
			continue
		}

		switch f.kind {
		case kindString:
			s, ok := val.(string)
			if !ok {
				fields[f.name] = "must be a string"
			} else if f.required && strings.TrimSpace(s) == "" {
				fields[f.name] = "is required"
			}
		case kindObject:
			if _, ok := val.(map[string]any); !ok {
				fields[f.name] = "must be an object"
			}
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Validate checks an outbound event against its struct tags.
func (v *Validator) Validate(event any) error {
	if err := v.validate.Struct(event); err != nil {
		return fmt.Errorf("invalid event %T: %w", event, err)
	}
	return nil
}

// ValidateRequest checks an inbound request struct and reports failures as
// a *ValidationError keyed by JSON field name.
func (v *Validator) ValidateRequest(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "is required"
		case "url":
			fields[fe.Field()] = "must be a URL"
		default:
			fields[fe.Field()] = fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
	}
	return &ValidationError{Fields: fields}
}
