// Package validate checks configuration structs against their validate
// tags and reports failures as [FieldErrors] with English messages.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("validate: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	// Field names follow the yaml tag, then the json tag, so messages
	// name the key a user actually wrote.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"yaml", "json"} {
			name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}

		return fld.Name
	})
}

// Struct validates val against its declared tags.
func Struct(val any) error {
	if err := validate.Struct(val); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		fields := make(FieldErrors, 0, len(verrors))
		for _, verror := range verrors {
			fields = append(fields, FieldError{
				Field: verror.Namespace()[strings.IndexByte(verror.Namespace(), '.')+1:],
				Err:   customErrForTag(verror.Tag(), verror),
			})
		}
		return fields
	}

	return nil
}

// FieldError is a validation failure for a single field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors is a collection of field errors.
type FieldErrors []FieldError

// Error returns a human-readable summary of all field errors.
func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

// Fields maps each failing field to its message.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, fld := range fe {
		m[fld.Field] = fld.Err
	}
	return m
}

// IsFieldErrors reports whether err carries FieldErrors.
func IsFieldErrors(err error) bool {
	var fe FieldErrors
	return errors.As(err, &fe)
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return "This field is required"
	case "startswith":
		return "Must start with " + verror.Param()
	default:
		return verror.Translate(translator)
	}
}
