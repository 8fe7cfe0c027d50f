package validator

import (
	"encoding/json"
	"errors"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/samber/lo"
)

var ErrTranslatorNotFound = errors.New("translator not found")

// rule is a custom tag: match decides validity and msg is the English
// message with {0} standing for the field name.
type rule struct {
	tag   string
	msg   string
	match func(string) bool
}

var rules = []rule{
	// 8..72 so the value always fits bcrypt's input limit
	{tag: "password", msg: "{0} must be 8-72 characters", match: regexp.MustCompile(`^.{8,72}$`).MatchString},
	{tag: "otpcode", msg: "{0} must be exactly 6 digits", match: regexp.MustCompile(`^[0-9]{6}$`).MatchString},
}

// overrides replace default English messages that read poorly for this API.
var overrides = map[string]string{
	"e164": "{0} must be a phone number in E.164 format",
}

// V10ValidationError maps snake_case field names to messages.
type V10ValidationError map[string]string

func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	b, _ := json.Marshal(map[string]string(vs)) //nolint:errcheck // map of strings always marshals
	return string(b)
}

func (vs V10ValidationError) Values() map[string]string {
	return vs
}

// V10Validator is the go-playground implementation with English messages.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLang := en.New()
	trans, ok := ut.New(enLang, enLang).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	for _, r := range rules {
		match := r.match
		if err := validate.RegisterValidation(r.tag, func(fl validator.FieldLevel) bool {
			s, ok := fl.Field().Interface().(string)
			return ok && match(s)
		}); err != nil {
			return nil, err
		}
		if err := registerMessage(validate, trans, r.tag, r.msg); err != nil {
			return nil, err
		}
	}

	for tag, msg := range overrides {
		if err := registerMessage(validate, trans, tag, msg); err != nil {
			return nil, err
		}
	}

	return &V10Validator{validate: validate, translator: trans}, nil
}

func registerMessage(validate *validator.Validate, trans ut.Translator, tag, msg string) error {
	return validate.RegisterTranslation(tag, trans,
		func(t ut.Translator) error {
			return t.Add(tag, msg, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			out, err := t.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.Error()
			}
			return out
		},
	)
}

// Validate returns V10ValidationError when any rule fails.
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
		out[lo.SnakeCase(fe.Field())] = fe.Translate(v.translator)
	}

	return out
}
