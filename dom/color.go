package dom

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

func (c rgbColor) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

var namedColors = map[string]rgbColor{
	"black":     {0, 0, 0},
	"white":     {255, 255, 255},
	"gray":      {128, 128, 128},
	"grey":      {128, 128, 128},
	"silver":    {192, 192, 192},
	"gainsboro": {220, 220, 220},
	"lightgray": {211, 211, 211},
	"lightgrey": {211, 211, 211},
	"red":       {255, 0, 0},
	"green":     {0, 128, 0},
	"blue":      {0, 0, 255},
	"yellow":    {255, 255, 0},
	"orange":    {255, 165, 0},
}

// NormalizeColor renders a CSS color as rgb(r,g,b). It understands hex
// (#rgb, #rrggbb), rgb()/rgba() with byte or percent channels and a few
// named colors.
func NormalizeColor(value string) (string, bool) {
	col, ok := parseCSSColor(value)
	if !ok {
		return "", false
	}
	return col.String(), true
}

func parseCSSColor(input string) (rgbColor, bool) {
	s := strings.TrimSpace(strings.ToLower(input))
	if s == "" || s == "transparent" {
		return rgbColor{}, false
	}
	if col, ok := namedColors[s]; ok {
		return col, true
	}
	if strings.HasPrefix(s, "#") {
		return parseShorthandHex(s)
	}
	if strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba(") {
		return parseRGBFunctional(s)
	}
	return rgbColor{}, false
}

func parseHexColor(value string) (rgbColor, bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) != 6 {
		return rgbColor{}, false
	}
	r, errR := strconv.ParseUint(hex[0:2], 16, 8)
	g, errG := strconv.ParseUint(hex[2:4], 16, 8)
	b, errB := strconv.ParseUint(hex[4:6], 16, 8)
	if errR != nil || errG != nil || errB != nil {
		return rgbColor{}, false
	}
	return rgbColor{uint8(r), uint8(g), uint8(b)}, true
}

func parseShorthandHex(value string) (rgbColor, bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	switch length := len(hex); {
	case length == 3:
		exp := []byte{
			hex[0], hex[0],
			hex[1], hex[1],
			hex[2], hex[2],
		}
		return parseHexColor(string(exp))
	case length >= 6:
		return parseHexColor(hex[:6])
	default:
		return rgbColor{}, false
	}
}

func parseRGBFunctional(expr string) (rgbColor, bool) {
	open := strings.IndexByte(expr, '(')
	close := strings.LastIndexByte(expr, ')')
	if open < 0 || close <= open+1 {
		return rgbColor{}, false
	}
	inner := expr[open+1 : close]
	parts := strings.Split(inner, ",")
	if len(parts) < 3 {
		parts = strings.Fields(strings.ReplaceAll(inner, "/", " "))
	}
	if len(parts) < 3 {
		return rgbColor{}, false
	}
	toByte := func(component string) uint8 {
		component = strings.TrimSpace(component)
		if strings.HasSuffix(component, "%") {
			value, err := strconv.ParseFloat(strings.TrimSuffix(component, "%"), 64)
			if err != nil {
				return 0
			}
			if value < 0 {
				value = 0
			} else if value > 100 {
				value = 100
			}
			return uint8(value * 255.0 / 100.0)
		}
		value, err := strconv.ParseFloat(component, 64)
		if err != nil {
			return 0
		}
		if value < 0 {
			value = 0
		} else if value > 255 {
			value = 255
		}
		return uint8(value + 0.5)
	}
	return rgbColor{
		R: toByte(parts[0]),
		G: toByte(parts[1]),
		B: toByte(parts[2]),
	}, true
}
