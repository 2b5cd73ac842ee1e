package template

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// funcRandomInt returns a random integer in [min, max].
func funcRandomInt(min, max int) string {
	if min > max {
		return ""
	}
	return strconv.Itoa(rand.IntN(max-min+1) + min)
}

// funcRandomFloat returns a random float in [min, max) rounded to
// precision decimals.
func funcRandomFloat(min, max float64, precision int) string {
	if min > max {
		return ""
	}
	return strconv.FormatFloat(min+rand.Float64()*(max-min), 'f', precision, 64)
}

func funcRandomString(length int) string {
	var b strings.Builder
	b.Grow(length)
	for range length {
		b.WriteByte(alphanumeric[rand.IntN(len(alphanumeric))])
	}
	return b.String()
}

func funcDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
