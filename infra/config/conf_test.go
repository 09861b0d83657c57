package config

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("QPBRIDGE_TEST_KEY", "value")
	if got := GetEnv("QPBRIDGE_TEST_KEY", "fallback"); got != "value" {
		t.Errorf("got %q", got)
	}
	if got := GetEnv("QPBRIDGE_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("got %q", got)
	}
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("QPBRIDGE_TEST_BOOL", "true")
	if !GetBoolEnv("QPBRIDGE_TEST_BOOL", false) {
		t.Error("expected true")
	}

	t.Setenv("QPBRIDGE_TEST_BOOL", "not-a-bool")
	if !GetBoolEnv("QPBRIDGE_TEST_BOOL", true) {
		t.Error("unparseable value should fall back to default")
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("QPBRIDGE_TEST_INT", "42")
	if got := GetIntEnv("QPBRIDGE_TEST_INT", 7); got != 42 {
		t.Errorf("got %d", got)
	}

	t.Setenv("QPBRIDGE_TEST_INT", "forty-two")
	if got := GetIntEnv("QPBRIDGE_TEST_INT", 7); got != 7 {
		t.Errorf("got %d, want fallback", got)
	}
}
