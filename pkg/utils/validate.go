package utils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator reads the same `binding` struct tags gin validates request bodies with,
// so a type checked at the HTTP edge is checked identically in its service.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	UseJSONFieldNames(v)
	return v
}

// UseJSONFieldNames makes v report fields by their json key.
func UseJSONFieldNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
}

var indexKey = strings.NewReplacer("[", ".", "]", "")

// FieldErrors turns validator failures into messages keyed by field, with slice
// elements keyed as "tags.1". ok is false when err is not a validation failure.
func FieldErrors(err error) (fields map[string]string, ok bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	fields = make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := indexKey.Replace(fe.Field())
		if _, seen := fields[key]; !seen {
			fields[key] = fieldMessage(fe)
		}
	}
	return fields, true
}

func fieldMessage(fe validator.FieldError) string {
	name, _, indexed := strings.Cut(fe.Field(), "[")
	label := strings.ReplaceAll(name, "_", " ")
	if indexed {
		label = strings.TrimSuffix(label, "s")
	}
	switch fe.Tag() {
	case "required":
		return "The " + label + " field is required."
	case "max":
		return "The " + label + " may not be greater than " + fe.Param() + " characters."
	case "email":
		return "The " + label + " must be a valid email address."
	default:
		return "The " + label + " is invalid."
	}
}
