package table

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatValue renders a cell value for display. Integers get thousands
// separators, so an asset id pivot label reads "1,042".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return printer.Sprintf("%d", x)
	case int:
		return printer.Sprintf("%d", x)
	case float64:
		return printer.Sprintf("%.2f", x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(dateLayout)
		}
		return x.Format("2006-01-02 15:04:05")
	case string:
		return x
	default:
		return printer.Sprint(x)
	}
}
