// Package hetu validates Finnish personal identity codes (henkilötunnus),
// which the Web API uses as delegate identifiers.
package hetu

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tendant/simple-valtuudet/pkg/errors"
)

const controlChars = "0123456789ABCDEFHJKLMNPRSTUVWXY"

var centuries = map[byte]int{
	'+': 1800,
	'-': 1900, 'Y': 1900, 'X': 1900, 'W': 1900, 'V': 1900, 'U': 1900,
	'A': 2000, 'B': 2000, 'C': 2000, 'D': 2000, 'E': 2000, 'F': 2000,
}

// Validate checks the DDMMYYCZZZQ layout, the birth date and the control
// character.
func Validate(s string) error {
	if len(s) != 11 {
		return errors.InvalidInput("hetu", "must be 11 characters")
	}

	century, ok := centuries[s[6]]
	if !ok {
		return errors.InvalidInput("hetu", fmt.Sprintf("unknown century sign %q", s[6]))
	}

	day, err1 := strconv.Atoi(s[0:2])
	month, err2 := strconv.Atoi(s[2:4])
	year, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil || !digits(s[0:6]) {
		return errors.InvalidInput("hetu", "birth date must be digits")
	}
	birth := time.Date(century+year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if birth.Day() != day || int(birth.Month()) != month {
		return errors.InvalidInput("hetu", "birth date is not a calendar date")
	}

	if !digits(s[7:10]) {
		return errors.InvalidInput("hetu", "individual number must be digits")
	}

	n, _ := strconv.Atoi(s[0:6] + s[7:10])
	if controlChars[n%31] != s[10] {
		return errors.InvalidInput("hetu", "control character mismatch")
	}
	return nil
}

// Mask hides the individual number and control character so identifiers can
// be logged.
func Mask(s string) string {
	if len(s) < 7 {
		return "****"
	}
	return s[:7] + "****"
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
