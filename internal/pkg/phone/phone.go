package phone

import "regexp"

// e164 is '+' followed by 2-15 digits with no leading zero after the '+'.
var e164 = regexp.MustCompile(`^\+[1-9][0-9]{1,14}$`)

// Valid reports whether number is a well-formed E.164 phone number.
func Valid(number string) bool {
	return e164.MatchString(number)
}
