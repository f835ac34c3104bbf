package clipboard

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNotNumeric 粘贴内容中没有可用的数字
var ErrNotNumeric = errors.New("clipboard: no numeric value")

// maxFractionDigits BTC 最小单位 satoshi
const maxFractionDigits = 8

var (
	nonNumeric = regexp.MustCompile(`[^\d.\-]`)
	leadingInt = regexp.MustCompile(`^-?\d+`)
	decimalNum = regexp.MustCompile(`^(\d*)(?:\.(\d*))?$`)
)

// SanitizeInteger 去掉非数字字符后取整数部分，e.g. "¥12,345円" -> "12345"
func SanitizeInteger(text string) (string, error) {
	s := nonNumeric.ReplaceAllString(text, "")
	m := leadingInt.FindString(s)
	if m == "" {
		return "", ErrNotNumeric
	}
	neg := strings.HasPrefix(m, "-")
	m = strings.TrimLeft(strings.TrimPrefix(m, "-"), "0")
	if m == "" {
		return "0", nil
	}
	if neg {
		m = "-" + m
	}
	return m, nil
}

// SanitizeDecimal 去掉千分位和非数字字符，小数部分截断到 8 位，e.g. "0.123456789 BTC" -> "0.12345678"
func SanitizeDecimal(text string) (string, error) {
	s := strings.ReplaceAll(nonNumeric.ReplaceAllString(text, ""), "-", "")
	m := decimalNum.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "") {
		return "", ErrNotNumeric
	}

	intPart, frac := m[1], m[2]
	if intPart == "" {
		intPart = "0"
	}
	if len(frac) > maxFractionDigits {
		frac = frac[:maxFractionDigits]
	}
	if frac == "" {
		return intPart, nil
	}
	return intPart + "." + frac, nil
}
