package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ID is a record identifier. The API sends ids either as strings or as
// numbers; both decode to the same canonical text, so 42, 42.0 and "42"
// are one id.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	n, ok := canonicalNumber(raw)
	if !ok {
		return fmt.Errorf("domain: id must be a string or a number, got %s", raw)
	}
	*id = ID(n)
	return nil
}

// canonicalNumber renders a JSON number token the same way whatever its
// spelling. Integers keep full precision.
func canonicalNumber(raw string) (string, bool) {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}
