package records

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jmehdipour/linkdb/internal/model"
)

const dateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	dateLayout,
}

// bindValue converts a decoded request value into a driver argument for a
// column of the given kind. Mismatches that no driver could bind are reported
// here; everything else is left to the engine's own type checks.
func bindValue(kind model.ColumnKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if kind == model.KindJSON {
		if s, ok := v.(string); ok && json.Valid([]byte(s)) {
			return s, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}

	switch x := v.(type) {
	case json.Number:
		return bindNumber(kind, x)
	case float64:
		return bindNumber(kind, json.Number(strconv.FormatFloat(x, 'f', -1, 64)))
	case float32:
		return bindNumber(kind, json.Number(strconv.FormatFloat(float64(x), 'f', -1, 32)))
	case int:
		return bindNumber(kind, json.Number(strconv.Itoa(x)))
	case int32:
		return bindNumber(kind, json.Number(strconv.FormatInt(int64(x), 10)))
	case int64:
		return bindNumber(kind, json.Number(strconv.FormatInt(x, 10)))
	case bool:
		if kind == model.KindBoolean || kind.Integral() {
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return x, nil
	case string:
		return bindString(kind, x)
	case []byte:
		return x, nil
	case time.Time:
		if kind == model.KindDate {
			return x.UTC().Format(dateLayout), nil
		}
		return x.UTC(), nil
	case map[string]any, []any:
		return nil, fmt.Errorf("nested values are only accepted by JSON columns, not %s", kind)
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

func bindNumber(kind model.ColumnKind, n json.Number) (any, error) {
	switch {
	case kind.Integral(), kind == model.KindBoolean:
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%s is not a whole number", n)
		}
		return i, nil
	case kind.Numeric():
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%s is not a number", n)
		}
		return f, nil
	}
	// text-like columns keep the literal; the engine decides whether it fits
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("%s is not a number", n)
	}
	return f, nil
}

func bindString(kind model.ColumnKind, s string) (any, error) {
	switch kind {
	case model.KindTimestamp:
		t, err := parseTimestamp(s)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	case model.KindDate:
		if _, err := time.Parse(dateLayout, s); err != nil {
			return nil, fmt.Errorf("%q is not a date (YYYY-MM-DD)", s)
		}
		return s, nil
	case model.KindBlob:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("blob values must be base64 encoded")
		}
		return b, nil
	}
	return s, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a timestamp (RFC 3339)", s)
}

// scanValue converts a value read from the store back into the form the
// tenant submitted, using the declared column kind. Unknown kinds only get
// byte slices turned into strings.
func scanValue(kind model.ColumnKind, v any) any {
	if v == nil {
		return nil
	}

	switch kind {
	case model.KindInteger, model.KindBigint:
		if i, ok := toInt64(v); ok {
			return i
		}
	case model.KindReal, model.KindDouble:
		if f, ok := toFloat64(v); ok {
			return f
		}
	case model.KindBoolean:
		if b, ok := v.(bool); ok {
			return b
		}
		if i, ok := toInt64(v); ok {
			return i != 0
		}
	case model.KindTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC().Format(time.RFC3339Nano)
		case []byte, string:
			if t, err := parseTimestamp(toString(x)); err == nil {
				return t.UTC().Format(time.RFC3339Nano)
			}
		}
	case model.KindDate:
		switch x := v.(type) {
		case time.Time:
			return x.UTC().Format(dateLayout)
		case []byte, string:
			s := toString(x)
			if len(s) > len(dateLayout) {
				s = s[:len(dateLayout)]
			}
			return s
		}
	case model.KindBlob:
		switch x := v.(type) {
		case []byte:
			return base64.StdEncoding.EncodeToString(x)
		case string:
			return base64.StdEncoding.EncodeToString([]byte(x))
		}
	case model.KindJSON:
		switch x := v.(type) {
		case []byte, string:
			dec := json.NewDecoder(strings.NewReader(toString(x)))
			dec.UseNumber()
			var out any
			if err := dec.Decode(&out); err == nil {
				return out
			}
		}
	}

	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func toString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	s, _ := v.(string)
	return s
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	case []byte, string:
		i, err := strconv.ParseInt(toString(x), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case []byte, string:
		f, err := strconv.ParseFloat(toString(x), 64)
		return f, err == nil
	}
	return 0, false
}

// rowID validates a tenant-supplied primary key.
func rowID(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
	case string:
		if i, err := strconv.ParseInt(x, 10, 64); err == nil {
			return i, nil
		}
	default:
		if i, ok := toInt64(v); ok {
			return i, nil
		}
	}
	return 0, fmt.Errorf("id must be an integer")
}
