package binder

import (
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/encoding/htmlindex"
)

// charsetValidator ensures the value names a character encoding known to the
// WHATWG encoding index, e.g. "utf-8", "gbk", or "shift_jis". The empty string
// is allowed so that the field can be left unset; pair it with `required` when
// a value is needed.
func charsetValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := htmlindex.Get(value)
	return err == nil
}
