package content

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Text decodes a JSON string, number, boolean or null into a string. The
// spreadsheet endpoints change cell types depending on what an editor typed.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
	default:
		*t = Text(data)
	}
	return nil
}

func (t Text) String() string { return string(t) }

// Number decodes a JSON number or numeric string into an int64. Anything
// else decodes to zero.
type Number int64

func (n *Number) UnmarshalJSON(data []byte) error {
	var t Text
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	s := string(t)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = Number(v)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*n = Number(f)
		return nil
	}
	*n = 0
	return nil
}

func (n Number) Int() int { return int(n) }

func (n Number) String() string { return strconv.FormatInt(int64(n), 10) }
