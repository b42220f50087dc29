package logger

import "testing"

func TestRedactChatID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"120363041234567890@g.us", "1203***@g.us"},
		{"+15551234567", "+155***"},
		{"abcd", "***"},
		{"ab@g.us", "***@g.us"},
		{"", "***"},
	}
	for _, tt := range tests {
		if got := RedactChatID(tt.in); got != tt.want {
			t.Errorf("RedactChatID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactPIIValueByKey(t *testing.T) {
	if got := redactPIIValue("chat_id", "120363041234567890@g.us"); got != "1203***@g.us" {
		t.Errorf("chat_id redaction = %q", got)
	}
	if got := redactPIIValue("group", "sent to 120363041234567890@g.us ok"); got != "sent to 1203***@g.us ok" {
		t.Errorf("embedded redaction = %q", got)
	}
	if got := redactPIIValue("campaign_id", "abc-123"); got != "abc-123" {
		t.Errorf("plain value changed: %q", got)
	}
}
