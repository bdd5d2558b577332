// Package masking redacts personal data before it lands in audit metadata.
package masking

import "strings"

const mask = "****"

// Email keeps the first character of the local part and the domain:
// "ana@example.com" becomes "a****@example.com".
func Email(value string) string {
	trimmed := strings.TrimSpace(value)
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 || at == len(trimmed)-1 {
		return Token(trimmed)
	}
	return trimmed[:1] + mask + trimmed[at:]
}

// Phone keeps the country prefix marker and the last four digits.
func Phone(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	prefix := ""
	if strings.HasPrefix(trimmed, "+") {
		prefix = "+"
	}
	digits := strings.TrimPrefix(trimmed, "+")
	if len(digits) <= 4 {
		return prefix + mask
	}
	return prefix + mask + digits[len(digits)-4:]
}

// Token hides everything but the last four characters.
func Token(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 8 {
		return mask
	}
	return mask + trimmed[len(trimmed)-4:]
}

// Field masks value according to the metadata key it is stored under.
// Keys it does not know are returned unchanged.
func Field(key string, value any) any {
	str, ok := value.(string)
	if !ok {
		return value
	}
	switch strings.ToLower(key) {
	case "email", "invite_email":
		return Email(str)
	case "phone", "phone_e164", "to":
		return Phone(str)
	case "token", "reset_token", "invite_token":
		return Token(str)
	default:
		return value
	}
}
