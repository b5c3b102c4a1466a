package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	// reader-reported UIDs: hex, optionally separated by colons or dashes
	cardUIDRe = regexp.MustCompile(`^[A-Za-z0-9:\-]{1,64}$`)
	// product references end up in the transaction reason, one line
	productRefRe = regexp.MustCompile(`^[\p{L}\p{N} _.\-]{1,100}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("card_uid", func(fl validator.FieldLevel) bool {
			return ValidCardUID(fl.Field().String())
		})
		_ = v.RegisterValidation("product_ref", func(fl validator.FieldLevel) bool {
			return productRefRe.MatchString(fl.Field().String())
		})
	}
}

func ValidCardUID(s string) bool {
	return cardUIDRe.MatchString(s)
}

// SanitizeStruct trims and HTML-escapes the string fields of a request
// before they are written into a ledger reason or echoed to a dashboard.
func SanitizeStruct(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return
	}
	s := rv.Elem()
	for i := range s.NumField() {
		f := s.Field(i)
		if f.Kind() == reflect.Pointer && !f.IsNil() {
			f = f.Elem()
		}
		if f.CanSet() && f.Kind() == reflect.String {
			f.SetString(html.EscapeString(strings.TrimSpace(f.String())))
		}
	}
}
