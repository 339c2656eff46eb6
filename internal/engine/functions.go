package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/encoding"
)

// DateLayout is the format of currentDate.
const DateLayout = "2006-01-02 15:04:05"

var functionDescriptions = map[string]string{
	config.FunctionUpperCase:   "Converts text to upper case",
	config.FunctionLowerCase:   "Converts text to lower case",
	config.FunctionTrim:        "Removes leading and trailing white space",
	config.FunctionLength:      "Number of characters of text, or of items of an object or array",
	config.FunctionToInt:       "Parses an integer; fractions are truncated and unparsable input becomes 0",
	config.FunctionToDouble:    "Parses a floating point number; unparsable input becomes 0.0",
	config.FunctionToString:    "Renders the value as text; objects and arrays become compact JSON",
	config.FunctionCurrentDate: "Current local date and time as " + DateLayout,
}

// Functions returns the built-in FUNCTION names with a description each.
func Functions() map[string]string {
	out := make(map[string]string, len(functionDescriptions))
	for k, v := range functionDescriptions {
		out[k] = v
	}
	return out
}

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// callFunction applies a built-in. A nil input is absent; only currentDate
// produces a value without one.
func (e *Engine) callFunction(name string, in *document.Node) (*document.Node, bool, error) {
	if name == config.FunctionCurrentDate {
		return document.String(e.now().Format(DateLayout)), true, nil
	}
	if in == nil {
		return nil, false, nil
	}

	switch name {
	case config.FunctionUpperCase, config.FunctionLowerCase, config.FunctionTrim:
		if !in.IsScalar() {
			return nil, false, fmt.Errorf("%s needs a scalar input, got %s", name, in.Kind())
		}
		if in.IsNull() {
			return document.Null(), true, nil
		}
		return document.String(applyText(name, in.Text())), true, nil
	case config.FunctionLength:
		if in.IsScalar() {
			return document.Int(int64(utf8.RuneCountInString(in.Text()))), true, nil
		}
		return document.Int(int64(in.Len())), true, nil
	case config.FunctionToInt:
		return document.Int(toInt(in)), true, nil
	case config.FunctionToDouble:
		return document.Float(toDouble(in)), true, nil
	case config.FunctionToString:
		s, err := e.toString(in)
		if err != nil {
			return nil, false, err
		}
		return document.String(s), true, nil
	}
	return nil, false, fmt.Errorf("unknown function %q", name)
}

func applyText(name, s string) string {
	switch name {
	case config.FunctionUpperCase:
		return upperCaser.String(s)
	case config.FunctionLowerCase:
		return lowerCaser.String(s)
	default:
		return strings.TrimSpace(s)
	}
}

func toInt(in *document.Node) int64 {
	if i, ok := in.Int64(); ok {
		return i
	}
	f, ok := in.Float64()
	if !ok {
		s := strings.TrimSpace(in.Text())
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	}
	if math.IsNaN(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func toDouble(in *document.Node) float64 {
	if f, ok := in.Float64(); ok && document.IsFinite(f) {
		return f
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(in.Text()), 64)
	if err != nil || !document.IsFinite(f) {
		return 0
	}
	return f
}

func (e *Engine) toString(in *document.Node) (string, error) {
	if in.IsScalar() {
		return in.Text(), nil
	}
	codec, err := e.codecs.Get(document.ProtocolJSON)
	if err != nil {
		return "", err
	}
	out, err := codec.Encode(&document.Document{Root: in}, encoding.Options{})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
