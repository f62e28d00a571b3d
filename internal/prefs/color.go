package prefs

import (
	"fmt"
	"strconv"
	"strings"
)

type rgbColor struct {
	R uint8
	G uint8
	B uint8
}

func (c rgbColor) hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// NormalizeColor turns a user-supplied CSS color into #rrggbb. It accepts
// #rgb, #rrggbb, rgb()/rgba() and the keywords black and white.
func NormalizeColor(value string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(value))
	switch s {
	case "":
		return "", false
	case "black":
		return "#000000", true
	case "white":
		return "#ffffff", true
	}
	if strings.HasPrefix(s, "#") {
		col, ok := parseShorthandHex(s)
		if !ok {
			return "", false
		}
		return col.hex(), true
	}
	if strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba(") {
		col, ok := parseRGBFunctional(s)
		if !ok {
			return "", false
		}
		return col.hex(), true
	}
	return "", false
}

func parseHexColor(value string) (rgbColor, bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) != 6 {
		return rgbColor{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return rgbColor{}, false
	}
	return rgbColor{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

func parseShorthandHex(value string) (rgbColor, bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	switch len(hex) {
	case 3:
		return parseHexColor(string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}))
	case 6:
		return parseHexColor(hex)
	default:
		return rgbColor{}, false
	}
}

func parseRGBFunctional(expr string) (rgbColor, bool) {
	open := strings.IndexByte(expr, '(')
	end := strings.LastIndexByte(expr, ')')
	if open < 0 || end <= open+1 {
		return rgbColor{}, false
	}
	parts := strings.Split(expr[open+1:end], ",")
	if len(parts) < 3 {
		return rgbColor{}, false
	}
	var out [3]uint8
	for i := 0; i < 3; i++ {
		v, ok := parseChannel(parts[i])
		if !ok {
			return rgbColor{}, false
		}
		out[i] = v
	}
	return rgbColor{R: out[0], G: out[1], B: out[2]}, true
}

func parseChannel(component string) (uint8, bool) {
	component = strings.TrimSpace(component)
	percent := strings.HasSuffix(component, "%")
	component = strings.TrimSuffix(component, "%")
	value, err := strconv.Atoi(component)
	if err != nil {
		return 0, false
	}
	if percent {
		value = clamp(value, 0, 100) * 255 / 100
	}
	return uint8(clamp(value, 0, 255)), true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
