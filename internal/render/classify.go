package render

import (
	"math"
	"strconv"
	"strings"
)

// Fixed column names the classifier recognizes.
const (
	ImageColumn     = "image"
	PermalinkColumn = "permalink"
	AssetURLColumn  = "asset_image_url"
)

// Kind is the classification of a cell.
type Kind int

const (
	KindPlain Kind = iota
	KindPivotImage
	KindHeaderRow
	KindImage
	KindPermalink
	KindTimestamp
)

var kindNames = [...]string{"plain", "pivot-image", "header-row", "image", "permalink", "timestamp"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Classification is the outcome of classifying one cell.
type Classification struct {
	Kind Kind
	// AssetID is valid when HasAsset is set.
	AssetID  int
	HasAsset bool
	// TotalRow marks an image cell on the pivot total row; it is never drawn.
	TotalRow bool
	// Link is set for permalink cells with a non-empty URL.
	Link *LinkContent
	// Timestamp reports a date or datetime column. Image cells never carry it.
	Timestamp bool
}

// Thumbnail reports whether the cell is an image cell of either kind.
func (c Classification) Thumbnail() bool {
	return c.Kind == KindPivotImage || c.Kind == KindImage
}

// Classifier holds the per-cycle inputs of Classify.
type Classifier struct {
	imageIdx   int
	rowPivots  bool
	columnType func(string) string
}

// NewClassifier prepares classification for one refresh of a view.
func NewClassifier(cfg ViewConfig, columnType func(string) string) Classifier {
	if columnType == nil {
		columnType = func(string) string { return "" }
	}
	return Classifier{
		imageIdx:   cfg.ImagePivotIndex(),
		rowPivots:  len(cfg.RowPivots) > 0,
		columnType: columnType,
	}
}

// RowPivotsActive reports whether the view has any row pivot.
func (c Classifier) RowPivotsActive() bool { return c.rowPivots }

// Classify decides what a cell holds. The first matching rule wins:
// pivot image, header row, image column, permalink, timestamp, plain.
func (c Classifier) Classify(cell Cell, meta CellMeta) Classification {
	out := Classification{Timestamp: IsTimestampType(c.columnType(meta.Column()))}

	if cell.Section == Header {
		if out.Timestamp {
			out.Kind = KindTimestamp
		}
		return out
	}

	if c.imageIdx >= 0 && meta.HeaderLevel == c.imageIdx+1 && meta.Value != "" {
		out.Kind = KindPivotImage
		out.Timestamp = false
		out.AssetID, out.HasAsset = ParsePivotAssetID(meta.Value)
		return out
	}

	if cell.Row == 0 {
		out.Kind = KindHeaderRow
		return out
	}

	switch meta.Column() {
	case ImageColumn:
		out.Kind = KindImage
		out.Timestamp = false
		if c.rowPivots && meta.PivotDepth == 0 {
			out.TotalRow = true
			return out
		}
		out.AssetID, out.HasAsset = ParseUserAssetID(meta.User)
		return out
	case PermalinkColumn, AssetURLColumn:
		out.Kind = KindPermalink
		if url := strings.TrimSpace(meta.Value); url != "" {
			out.Link = &LinkContent{URL: url, Label: PermalinkLabel(url)}
		}
		return out
	}

	if out.Timestamp {
		out.Kind = KindTimestamp
	}
	return out
}

// IsTimestampType reports whether a schema type renders as a timestamp.
func IsTimestampType(t string) bool {
	return t == "date" || t == "datetime"
}

// ParsePivotAssetID parses a row-path value such as "1,234" into an asset id.
func ParsePivotAssetID(value string) (int, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	if s == "" {
		return 0, false
	}
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// ParseUserAssetID extracts an asset id from the raw value of an image cell.
// nil, negative, fractional and non-numeric values yield no id.
func ParseUserAssetID(v any) (int, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int:
		return x, x >= 0
	case int32:
		return int(x), x >= 0
	case int64:
		return int(x), x >= 0
	case uint:
		return int(x), true
	case uint32:
		return int(x), true
	case uint64:
		if x > math.MaxInt32 {
			return 0, false
		}
		return int(x), true
	case float32:
		return ParseUserAssetID(float64(x))
	case float64:
		if x < 0 || x != math.Trunc(x) || x > math.MaxInt32 {
			return 0, false
		}
		return int(x), true
	case string:
		return ParsePivotAssetID(x)
	default:
		return 0, false
	}
}

// googleLabelLen is how much of a signed googleusercontent URL stays
// visible after the scheme.
const googleLabelLen = 22

// PermalinkLabel shortens a URL for display: the scheme is dropped and
// signed googleusercontent URLs are cut short with an ellipsis.
func PermalinkLabel(url string) string {
	start := 0
	if i := strings.Index(url, "://"); i >= 0 {
		start = i + len("://")
	}
	label := url[start:]
	if strings.Contains(url, "googleusercontent") {
		if len(label) > googleLabelLen {
			label = label[:googleLabelLen]
		}
		label += "..."
	}
	return label
}
