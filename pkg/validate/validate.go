// Package validate checks struct fields against `validate` tag rules.
//
// Rules are comma separated; list values inside one rule use "|":
//
//	required        non-zero, non-blank
//	nullable        skip remaining rules when empty
//	email           address shape
//	url             absolute http(s) URL
//	min=N / max=N   string length in runes, collection size, or numeric bound
//	gt=N / gte=N    numeric lower bound
//	lte=N           numeric upper bound
//	in=a|b|c        one of the listed values
//	phone           digits, spaces and + - ( ), 6 to 20 digits
//
// Example:
//
//	type OrderInput struct {
//	    CustomerName string `json:"customerName" validate:"required,max=120"`
//	    DeliveryType string `json:"deliveryType" validate:"nullable,in=home|office"`
//	}
//
// Tags are parsed once per struct type.
package validate

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// check returns a message for a failing value, or "".
type check func(field string, v reflect.Value) string

type fieldPlan struct {
	index    int
	name     string
	nullable bool
	checks   []check
}

var plans sync.Map // reflect.Type -> []fieldPlan

// Struct validates the exported fields of v (a struct or pointer to one).
// Only the first failing rule per field is reported, keyed by JSON name.
func Struct(v interface{}) map[string]string {
	errs := make(map[string]string)
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return errs
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return errs
	}

	for _, fp := range planFor(rv.Type()) {
		value := rv.Field(fp.index)
		if fp.nullable && isEmpty(value) {
			continue
		}
		for _, c := range fp.checks {
			if msg := c(fp.name, value); msg != "" {
				errs[fp.name] = msg
				break
			}
		}
	}
	return errs
}

func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

func planFor(t reflect.Type) []fieldPlan {
	if cached, ok := plans.Load(t); ok {
		return cached.([]fieldPlan)
	}
	var out []fieldPlan
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("validate")
		if tag == "" || !f.IsExported() {
			continue
		}
		fp := fieldPlan{index: i, name: jsonFieldName(f)}
		for _, rule := range strings.Split(tag, ",") {
			rule = strings.TrimSpace(rule)
			if rule == "nullable" {
				fp.nullable = true
				continue
			}
			if c := compile(rule); c != nil {
				fp.checks = append(fp.checks, c)
			}
		}
		out = append(out, fp)
	}
	plans.Store(t, out)
	return out
}

var (
	emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRE = regexp.MustCompile(`^\+?[0-9 ()\-]+$`)
)

// compile turns one rule into a check. Unknown rules are ignored.
func compile(rule string) check {
	key, param, _ := strings.Cut(rule, "=")
	n := parseFloat(param)

	switch key {
	case "required":
		return func(field string, v reflect.Value) string {
			if isEmpty(v) {
				return fmt.Sprintf("The %s field is required.", field)
			}
			return ""
		}
	case "email":
		return matches(emailRE, "The %s must be a valid email address.")
	case "url":
		return func(field string, v reflect.Value) string {
			u, err := url.ParseRequestURI(text(v))
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Sprintf("The %s must be a valid URL.", field)
			}
			return ""
		}
	case "phone":
		return func(field string, v reflect.Value) string {
			raw := text(v)
			digits := strings.Count(strings.Map(keepDigit, raw), "") - 1
			if !phoneRE.MatchString(raw) || digits < 6 || digits > 20 {
				return fmt.Sprintf("The %s must be a valid phone number.", field)
			}
			return ""
		}
	case "min":
		return func(field string, v reflect.Value) string {
			if isNumeric(v) {
				if toFloat(v) < n {
					return fmt.Sprintf("The %s must be at least %s.", field, param)
				}
			} else if float64(size(v)) < n {
				return fmt.Sprintf("The %s must be at least %s characters.", field, param)
			}
			return ""
		}
	case "max":
		return func(field string, v reflect.Value) string {
			if isNumeric(v) {
				if toFloat(v) > n {
					return fmt.Sprintf("The %s must not be greater than %s.", field, param)
				}
			} else if float64(size(v)) > n {
				return fmt.Sprintf("The %s must not exceed %s characters.", field, param)
			}
			return ""
		}
	case "gt":
		return bound(func(f float64) bool { return f > n }, "The %s must be greater than "+param+".")
	case "gte":
		return bound(func(f float64) bool { return f >= n }, "The %s must be greater than or equal to "+param+".")
	case "lte":
		return bound(func(f float64) bool { return f <= n }, "The %s must be less than or equal to "+param+".")
	case "in":
		allowed := map[string]bool{}
		for _, a := range strings.Split(param, "|") {
			allowed[strings.TrimSpace(a)] = true
		}
		return func(field string, v reflect.Value) string {
			if !allowed[text(v)] {
				return fmt.Sprintf("The selected %s is invalid.", field)
			}
			return ""
		}
	}
	return nil
}

func matches(re *regexp.Regexp, format string) check {
	return func(field string, v reflect.Value) string {
		if !re.MatchString(text(v)) {
			return fmt.Sprintf(format, field)
		}
		return ""
	}
}

func bound(ok func(float64) bool, format string) check {
	return func(field string, v reflect.Value) string {
		if !ok(toFloat(v)) {
			return fmt.Sprintf(format, field)
		}
		return ""
	}
}

func keepDigit(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}

func text(v reflect.Value) string {
	if v.Kind() == reflect.String {
		return v.String()
	}
	return fmt.Sprintf("%v", v.Interface())
}

func size(v reflect.Value) int {
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len()
	}
	return len([]rune(text(v)))
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return false
	}
	if isNumeric(v) {
		return toFloat(v) == 0
	}
	return false
}

func isNumeric(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return parseFloat(text(v))
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name)
	}
	return name
}
