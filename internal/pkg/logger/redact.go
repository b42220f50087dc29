package logger

import "strings"

// RedactChatID masks a chat identifier for safe logging. Group JIDs keep
// their domain suffix: "120363041234567890@g.us" → "1203***@g.us".
// Bare phone numbers keep the leading digits: "+15551234567" → "+155***".
// Short identifiers (≤4 chars) are fully masked.
func RedactChatID(id string) string {
	local, domain, hasDomain := strings.Cut(id, "@")
	masked := "***"
	if len(local) > 4 {
		masked = local[:4] + "***"
	}
	if hasDomain {
		return masked + "@" + domain
	}
	return masked
}
