package hasher

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var jsonNumberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

const hexDigits = "0123456789abcdef"

// Canonicalize encodes v as canonical JSON: object keys sorted by their UTF-8 bytes,
// no insignificant whitespace, non-ASCII text emitted verbatim and numbers in their
// natural textual form. Values that have no JSON representation are rejected with a
// *ValidationError rather than coerced.
func Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, "$"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type mapEntry struct {
	key   string
	value any
}

func writeValue(buf *bytes.Buffer, v any, path string) error {
	switch value := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case string:
		return writeString(buf, value, path)
	case bool:
		if value {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		return writeJSONNumber(buf, value, path)
	case decimal.Decimal:
		buf.WriteString(value.String())
		return nil
	case float64:
		return writeFloat(buf, value, 64, path)
	case float32:
		return writeFloat(buf, float64(value), 32, path)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return writeValue(buf, rv.Elem().Interface(), path)
	case reflect.String:
		return writeString(buf, rv.String(), path)
	case reflect.Bool:
		return writeValue(buf, rv.Bool(), path)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
		return nil
	case reflect.Float32:
		return writeFloat(buf, rv.Float(), 32, path)
	case reflect.Float64:
		return writeFloat(buf, rv.Float(), 64, path)
	case reflect.Map:
		return writeMap(buf, rv, path)
	case reflect.Slice, reflect.Array:
		return writeSlice(buf, rv, path)
	default:
		return &ValidationError{Path: path, Reason: "unsupported type " + rv.Type().String()}
	}
}

// writeString escapes only what JSON requires: quote, backslash and control characters.
func writeString(buf *bytes.Buffer, s string, path string) error {
	if !utf8.ValidString(s) {
		return &ValidationError{Path: path, Reason: "string is not valid UTF-8"}
	}

	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if c < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[c>>4])
				buf.WriteByte(hexDigits[c&0xf])
				continue
			}
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
	return nil
}

func writeJSONNumber(buf *bytes.Buffer, n json.Number, path string) error {
	if !jsonNumberPattern.MatchString(n.String()) {
		return &ValidationError{Path: path, Reason: "malformed number " + strconv.Quote(n.String())}
	}
	buf.WriteString(n.String())
	return nil
}

// writeFloat renders the shortest round-trip representation. A float always carries
// a fraction or an exponent so that 100.0 never collides with the integer 100.
func writeFloat(buf *bytes.Buffer, f float64, bitSize int, path string) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &ValidationError{Path: path, Reason: "non-finite float is not representable"}
	}
	buf.WriteString(formatFloat(f, bitSize))
	return nil
}

func formatFloat(f float64, bitSize int) string {
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	sci := strconv.FormatFloat(f, 'e', -1, bitSize)
	mantissa, expPart, _ := strings.Cut(sci, "e")
	exp, _ := strconv.Atoi(expPart)

	sign := ""
	if strings.HasPrefix(mantissa, "-") {
		sign = "-"
		mantissa = mantissa[1:]
	}
	digits := strings.Replace(mantissa, ".", "", 1)

	var out string
	switch {
	case exp >= 16 || exp < -4:
		out = digits[:1]
		if len(digits) > 1 {
			out += "." + digits[1:]
		}
		expSign := "+"
		if exp < 0 {
			expSign = "-"
			exp = -exp
		}
		expDigits := strconv.Itoa(exp)
		if len(expDigits) < 2 {
			expDigits = "0" + expDigits
		}
		out += "e" + expSign + expDigits
	case exp < 0:
		out = "0." + strings.Repeat("0", -exp-1) + digits
	case len(digits) <= exp+1:
		out = digits + strings.Repeat("0", exp+1-len(digits)) + ".0"
	default:
		out = digits[:exp+1] + "." + digits[exp+1:]
	}
	return sign + out
}

func writeMap(buf *bytes.Buffer, rv reflect.Value, path string) error {
	if rv.Type().Key().Kind() != reflect.String {
		return &ValidationError{Path: path, Reason: "map keys must be strings"}
	}
	if rv.IsNil() {
		buf.WriteString("null")
		return nil
	}

	entries := make([]mapEntry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, mapEntry{key: iter.Key().String(), value: iter.Value().Interface()})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].key < entries[j].key
	})

	buf.WriteByte('{')
	for i, entry := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		childPath := path + "." + entry.key
		if err := writeString(buf, entry.key, childPath); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, entry.value, childPath); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeSlice(buf *bytes.Buffer, rv reflect.Value, path string) error {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		buf.WriteString("null")
		return nil
	}

	buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, rv.Index(i).Interface(), path+"["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}
