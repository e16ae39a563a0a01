package privacy

import (
	"testing"
)

func TestRedactor_Scrub(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "No PII",
			input: "Hello World",
			want:  "Hello World",
		},
		{
			name:  "Email",
			input: "Contact me at user@example.com",
			want:  "Contact me at [REDACTED_EMAIL]",
		},
		{
			name:  "Email and digit run",
			input: "contact me at a@b.com or call 123456789012",
			want:  "contact me at [REDACTED_EMAIL] or call [REDACTED_NUMBER]",
		},
		{
			name:  "Short digit run kept",
			input: "room 12345",
			want:  "room 12345",
		},
		{
			name:  "Exactly six digits",
			input: "pin 123456",
			want:  "pin [REDACTED_NUMBER]",
		},
		{
			name:  "Digits inside email",
			input: "user1234567@example.org",
			want:  "[REDACTED_EMAIL]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Scrub(tt.input); got != tt.want {
				t.Errorf("Redactor.Scrub() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRedactor_ScrubValueRecursive(t *testing.T) {
	r := NewRedactor()
	in := map[string]any{
		"owner": "ops@example.com",
		"count": 7,
		"nested": map[string]any{
			"phones": []any{"5551234567", "n/a"},
			"tags":   []string{"x", "id 9999999"},
			"labels": map[string]string{"who": "a@b.io"},
		},
		"flag": true,
	}

	out := r.ScrubValue(in).(map[string]any)

	if out["owner"] != EmailToken {
		t.Errorf("owner not redacted: %v", out["owner"])
	}
	if out["count"] != 7 || out["flag"] != true {
		t.Errorf("non-string values must pass through: %v", out)
	}
	nested := out["nested"].(map[string]any)
	phones := nested["phones"].([]any)
	if phones[0] != NumberToken || phones[1] != "n/a" {
		t.Errorf("phones = %v", phones)
	}
	tags := nested["tags"].([]any)
	if tags[1] != "id "+NumberToken {
		t.Errorf("tags = %v", tags)
	}
	labels := nested["labels"].(map[string]any)
	if labels["who"] != EmailToken {
		t.Errorf("labels = %v", labels)
	}

	// input untouched
	if in["owner"] != "ops@example.com" {
		t.Error("ScrubValue mutated its input")
	}
}

func TestRedactor_ScrubValueNil(t *testing.T) {
	if NewRedactor().ScrubValue(nil) != nil {
		t.Error("expected nil")
	}
}
