package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/samber/lo"

	"github.com/shandysiswandi/phoneauth/internal/pkg/phone"
)

var ErrTranslatorNotFound = errors.New("validator: english translator not found")

// customRule is a tag this package adds on top of the builtin ones.
type customRule struct {
	tag string
	msg string // translation, {0} is the field name
	fn  validator.Func
}

// e164 reads numbers only in international form, so anything without a
// leading "+" fails to parse.
var e164 = phone.NewNormalizer("", false)

var customRules = []customRule{
	{
		tag: "e164_subject",
		msg: "{0} must be a phone number in E.164 form",
		fn: func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			got, err := e164.Normalize(s)
			return err == nil && got == s
		},
	},
	{
		tag: "channel",
		msg: "{0} must be one of sms or whatsapp",
		fn: func(fl validator.FieldLevel) bool {
			switch strings.ToLower(strings.TrimSpace(fl.Field().String())) {
			case "sms", "whatsapp":
				return true
			}
			return false
		},
	},
	{
		tag: "digits",
		msg: "{0} must contain digits only",
		fn: func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s != "" && strings.Trim(s, "0123456789") == ""
		},
	},
}

// V10Validator validates with go-playground/validator and reports English
// messages keyed by field name.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// V10ValidationError maps a field to its message. The field is the json tag
// name when one is set, otherwise the Go name in snake_case.
type V10ValidationError map[string]string

func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}
	b, err := json.Marshal(map[string]string(vs))
	if err != nil {
		return fmt.Sprintf("validation error: %v", err)
	}
	return string(b)
}

func (vs V10ValidationError) Values() map[string]string { return vs }

func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(fieldName)

	lang := en.New()
	trans, ok := ut.New(lang, lang).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}
	for _, rule := range customRules {
		if err := register(validate, trans, rule); err != nil {
			return nil, fmt.Errorf("validator: rule %s: %w", rule.tag, err)
		}
	}

	return &V10Validator{validate: validate, translator: trans}, nil
}

func register(validate *validator.Validate, trans ut.Translator, rule customRule) error {
	if err := validate.RegisterValidation(rule.tag, rule.fn); err != nil {
		return err
	}
	return validate.RegisterTranslation(rule.tag, trans,
		func(t ut.Translator) error { return t.Add(rule.tag, rule.msg, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}

// Validate returns a V10ValidationError when data breaks a rule. Other
// errors, such as passing a non-struct, are returned unchanged.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(V10ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = fe.Translate(v.translator)
	}
	return out
}

func fieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return lo.SnakeCase(f.Name)
	}
	return name
}
