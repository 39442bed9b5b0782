package hls

import (
	"regexp"
	"strconv"
	"strings"
)

// Attribute is one value of an HLS attribute list. Quoted values are always
// strings; unquoted values may be numbers, resolutions or enumerated strings.
type Attribute struct {
	Value  string
	Quoted bool
}

type Attributes map[string]Attribute

// ParseAttributes tokenizes a comma separated attribute list such as
//
//	BANDWIDTH=1280000,RESOLUTION=1280x720,CODECS="avc1.64001f,mp4a.40.2"
//
// Quoted values may contain commas, and \" or \\ escapes. Any other
// backslash is kept as is. Entries
// without '=' are skipped. A later duplicate key replaces an earlier one.
func ParseAttributes(list string) Attributes {
	attrs := Attributes{}
	i, n := 0, len(list)
	for i < n {
		for i < n && (list[i] == ' ' || list[i] == '\t' || list[i] == ',') {
			i++
		}
		if i >= n {
			break
		}

		keyStart := i
		for i < n && list[i] != '=' && list[i] != ',' {
			i++
		}
		key := strings.TrimSpace(list[keyStart:i])
		if i >= n || list[i] == ',' {
			continue
		}
		i++ // '='

		var attr Attribute
		if i < n && list[i] == '"' {
			attr.Quoted = true
			i++
			var sb strings.Builder
			for i < n && list[i] != '"' {
				if list[i] == '\\' && i+1 < n && (list[i+1] == '"' || list[i+1] == '\\') {
					i++
				}
				sb.WriteByte(list[i])
				i++
			}
			if i < n {
				i++ // closing quote
			}
			attr.Value = sb.String()
			for i < n && list[i] != ',' {
				i++
			}
		} else {
			valueStart := i
			for i < n && list[i] != ',' {
				i++
			}
			attr.Value = strings.TrimSpace(list[valueStart:i])
		}

		if key != "" {
			attrs[key] = attr
		}
	}
	return attrs
}

func (a Attributes) String(key string) (string, bool) {
	attr, ok := a[key]
	if !ok || attr.Value == "" {
		return "", false
	}
	return attr.Value, true
}

// Int returns an unquoted decimal-integer attribute.
func (a Attributes) Int(key string) (int64, bool) {
	attr, ok := a[key]
	if !ok || attr.Quoted || !isDigits(attr.Value) {
		return 0, false
	}
	v, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Float returns an unquoted decimal-floating-point attribute.
func (a Attributes) Float(key string) (float64, bool) {
	attr, ok := a[key]
	if !ok || attr.Quoted || attr.Value == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(attr.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var resolutionPattern = regexp.MustCompile(`^(\d+)x(\d+)$`)

// Resolution splits a "WxH" attribute.
func (a Attributes) Resolution(key string) (width, height int, ok bool) {
	attr, found := a[key]
	if !found || attr.Quoted {
		return 0, 0, false
	}
	m := resolutionPattern.FindStringSubmatch(attr.Value)
	if m == nil {
		return 0, 0, false
	}
	w, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return w, h, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
