package util

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator wraps a struct validator with English field messages.
// Failures are reported as *ValidationError keyed by the json (or yaml)
// field path, so callers never see validator internals.
//
// Validator also satisfies gin's binding.StructValidator and can be
// installed as binding.Validator.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// NewValidator creates a validator reading rules from the given struct tag.
func NewValidator(tagName string) *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.SetTagName(tagName)
	validate.RegisterTagNameFunc(fieldName)

	uni := ut.New(en.New())
	trans, _ := uni.GetTranslator("en")
	// Registration only fails on duplicate keys, which a fresh translator cannot have.
	_ = en_translations.RegisterDefaultTranslations(validate, trans)

	return &Validator{validate: validate, trans: trans}
}

// fieldName reports json/yaml names instead of Go field names.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "yaml"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// Struct validates a struct and returns nil or a *ValidationError.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(err.Error())
	}
	return &ValidationError{Fields: v.Translate(verrs)}
}

// Translate converts validator field errors into messages grouped by field path.
func (v *Validator) Translate(verrs validator.ValidationErrors) map[string][]string {
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		path := FieldPath(fe)
		fields[path] = append(fields[path], fe.Translate(v.trans))
	}
	return fields
}

// FieldPath returns the dotted field path without the root struct name.
func FieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

// ValidateStruct implements gin's binding.StructValidator.
func (v *Validator) ValidateStruct(obj interface{}) error {
	if obj == nil {
		return nil
	}

	value := reflect.ValueOf(obj)
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}

	switch value.Kind() {
	case reflect.Struct:
		return v.Struct(obj)
	case reflect.Slice, reflect.Array:
		for i := 0; i < value.Len(); i++ {
			if err := v.ValidateStruct(value.Index(i).Interface()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Engine implements gin's binding.StructValidator.
func (v *Validator) Engine() interface{} {
	return v.validate
}
