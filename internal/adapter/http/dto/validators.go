package dto

import (
	"html"
	"reflect"
	"strings"

	"nusd-wallet/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	// TagAlias validates an account alias code such as "NUSD-7KQ2MX".
	TagAlias = "nusd_alias"
	// TagTronAddress validates a base58check TRON address.
	TagTronAddress = "tron_address"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Register(v)
	}
}

// Register installs the custom validators on v.
func Register(v *validator.Validate) {
	_ = v.RegisterValidation(TagAlias, validateAlias)
	_ = v.RegisterValidation(TagTronAddress, validateTronAddress)
}

// validateAlias accepts aliases in any case with surrounding whitespace.
func validateAlias(fl validator.FieldLevel) bool {
	return domain.ValidateAlias(domain.NormalizeAlias(fl.Field().String()))
}

func validateTronAddress(fl validator.FieldLevel) bool {
	return domain.ValidateTronAddress(strings.TrimSpace(fl.Field().String()))
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
