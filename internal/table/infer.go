package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, s)
	return t, err == nil
}

func parseDatetime(s string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// inferType picks the narrowest type every non-nil value fits. Strings are
// parsed as numbers and booleans only when parseStrings is set; date and
// datetime strings are always recognized.
func inferType(vals []any, parseStrings bool) Type {
	allInt, allNum, allBool, allDate, allTime := true, true, true, true, true
	seen := 0
	for _, v := range vals {
		if v == nil {
			continue
		}
		seen++
		isInt, isNum, isBool, isDate, isTime := false, false, false, false, false
		switch x := v.(type) {
		case int, int64:
			isInt, isNum = true, true
		case float64:
			isNum = true
		case bool:
			isBool = true
		case time.Time:
			isTime = true
			isDate = x.Equal(x.Truncate(24 * time.Hour))
		case string:
			s := strings.TrimSpace(x)
			if parseStrings {
				if _, err := strconv.ParseInt(s, 10, 64); err == nil {
					isInt, isNum = true, true
				} else if _, err := strconv.ParseFloat(s, 64); err == nil {
					isNum = true
				}
				if _, err := strconv.ParseBool(s); err == nil && !isNum {
					isBool = true
				}
			}
			if _, ok := parseDate(s); ok {
				isDate, isTime = true, true
			} else if _, ok := parseDatetime(s); ok {
				isTime = true
			}
		}
		allInt = allInt && isInt
		allNum = allNum && isNum
		allBool = allBool && isBool
		allDate = allDate && isDate
		allTime = allTime && isTime
	}

	switch {
	case seen == 0:
		return TypeString
	case allInt:
		return TypeInteger
	case allNum:
		return TypeFloat
	case allBool:
		return TypeBoolean
	case allDate:
		return TypeDate
	case allTime:
		return TypeDatetime
	default:
		return TypeString
	}
}

// convert coerces v to the Go representation of t. Values that do not fit
// become nil.
func convert(v any, t Type) any {
	if v == nil {
		return nil
	}
	switch t {
	case TypeInteger:
		switch x := v.(type) {
		case int:
			return int64(x)
		case int64:
			return x
		case float64:
			return int64(x)
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return n
			}
		}
	case TypeFloat:
		switch x := v.(type) {
		case int:
			return float64(x)
		case int64:
			return float64(x)
		case float64:
			return x
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f
			}
		}
	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b
			}
		}
	case TypeDate, TypeDatetime:
		switch x := v.(type) {
		case time.Time:
			return x
		case string:
			s := strings.TrimSpace(x)
			if d, ok := parseDate(s); ok {
				return d
			}
			if d, ok := parseDatetime(s); ok {
				return d
			}
		}
	case TypeString:
		switch x := v.(type) {
		case string:
			return x
		case time.Time:
			return x.Format(time.RFC3339)
		default:
			return fmt.Sprint(x)
		}
	}
	return nil
}
