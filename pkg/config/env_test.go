package config

import (
	"testing"
)

func TestExpandEnvString(t *testing.T) {
	t.Setenv("TRAVEL_TEST_VAR", "hello")
	t.Setenv("TRAVEL_EMPTY_VAR", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"braced", "${TRAVEL_TEST_VAR}", "hello"},
		{"simple", "$TRAVEL_TEST_VAR", "hello"},
		{"prefix form", "env:TRAVEL_TEST_VAR", "hello"},
		{"prefix form with space", "env: TRAVEL_TEST_VAR", "hello"},
		{"default used", "${TRAVEL_EMPTY_VAR:-fallback}", "fallback"},
		{"default unused", "${TRAVEL_TEST_VAR:-fallback}", "hello"},
		{"embedded", "key=${TRAVEL_TEST_VAR}!", "key=hello!"},
		{"unset braced", "${TRAVEL_UNSET_VAR_XYZ}", ""},
		{"no reference", "plain text", "plain text"},
		{"dollar amount untouched", "$99", "$99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnvString(tt.input); got != tt.want {
				t.Errorf("expandEnvString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandEnvVarsInData(t *testing.T) {
	t.Setenv("TRAVEL_TEST_VAR", "expanded")

	input := map[string]any{
		"plain":  "value",
		"ref":    "${TRAVEL_TEST_VAR}",
		"number": 42,
		"nested": map[string]any{
			"ref": "env:TRAVEL_TEST_VAR",
		},
		"list": []any{"${TRAVEL_TEST_VAR}", 7},
	}

	out, ok := ExpandEnvVarsInData(input).(map[string]any)
	if !ok {
		t.Fatal("expected map output")
	}

	if out["ref"] != "expanded" {
		t.Errorf("ref = %v, want expanded", out["ref"])
	}
	if out["number"] != 42 {
		t.Errorf("number changed: %v", out["number"])
	}
	nested := out["nested"].(map[string]any)
	if nested["ref"] != "expanded" {
		t.Errorf("nested ref = %v, want expanded", nested["ref"])
	}
	list := out["list"].([]any)
	if list[0] != "expanded" || list[1] != 7 {
		t.Errorf("list = %v, want [expanded 7]", list)
	}
}
