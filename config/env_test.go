package config

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("WALLETMIND_TEST_STR", "hello")
	t.Setenv("WALLETMIND_TEST_INT", "42")
	t.Setenv("WALLETMIND_TEST_FLOAT", "0.25")
	t.Setenv("WALLETMIND_TEST_BOOL", "true")
	t.Setenv("WALLETMIND_TEST_DUR", "2m")
	t.Setenv("WALLETMIND_TEST_BAD", "not-a-number")

	if got := Env("WALLETMIND_TEST_STR", "default"); got != "hello" {
		t.Errorf("Env() = %q, want %q", got, "hello")
	}
	if got := Env("WALLETMIND_TEST_UNSET", "default"); got != "default" {
		t.Errorf("Env() fallback = %q, want %q", got, "default")
	}
	if got := EnvInt("WALLETMIND_TEST_INT", 0); got != 42 {
		t.Errorf("EnvInt() = %d, want 42", got)
	}
	if got := EnvInt("WALLETMIND_TEST_BAD", 7); got != 7 {
		t.Errorf("EnvInt() on invalid value = %d, want fallback 7", got)
	}
	if got := EnvFloat("WALLETMIND_TEST_FLOAT", 0); got != 0.25 {
		t.Errorf("EnvFloat() = %f, want 0.25", got)
	}
	if got := EnvBool("WALLETMIND_TEST_BOOL", false); !got {
		t.Errorf("EnvBool() = %v, want true", got)
	}
	if got := EnvDuration("WALLETMIND_TEST_DUR", 0); got != 2*time.Minute {
		t.Errorf("EnvDuration() = %v, want 2m", got)
	}
	if got := EnvDuration("WALLETMIND_TEST_BAD", time.Second); got != time.Second {
		t.Errorf("EnvDuration() on invalid value = %v, want fallback 1s", got)
	}
}
