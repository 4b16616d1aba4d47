package domain

import "strings"

// ShortDisplayName derives the display name shown next to trips and tickets:
// the first word of the full name, or the local part of the email when no
// name is available.
func ShortDisplayName(fullName, email string) string {
	fields := strings.Fields(fullName)
	if len(fields) > 0 {
		return fields[0]
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
