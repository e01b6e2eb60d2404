package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("TWILIO_PHONE_NUMBER", "+15550001111")
	t.Setenv("PUBLIC_BASE_URL", "https://dialer.example.com")
	t.Setenv("ADMIN_JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.App.Port != 8080 {
		t.Errorf("port = %d, want 8080", c.App.Port)
	}
	if c.Ledger.Backend != "csv" || c.Ledger.CSVPath != "contacts.csv" {
		t.Errorf("ledger = %+v, want csv defaults", c.Ledger)
	}
	if c.Session.MaxConcurrentCalls != 3 {
		t.Errorf("max concurrent = %d, want 3", c.Session.MaxConcurrentCalls)
	}
	if c.Session.ConversationTimeout != 120*time.Second {
		t.Errorf("conversation timeout = %v, want 2m", c.Session.ConversationTimeout)
	}
	if c.Compliance.CallingHoursStart != 9 || c.Compliance.CallingHoursEnd != 17 {
		t.Errorf("calling hours = %d-%d, want 9-17", c.Compliance.CallingHoursStart, c.Compliance.CallingHoursEnd)
	}
	if c.Compliance.Timezone != "US/Eastern" {
		t.Errorf("timezone = %q, want US/Eastern", c.Compliance.Timezone)
	}
}

func TestLoadMissingTwilioCredentials(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("ADMIN_JWT_SECRET", "secret")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing carrier credentials")
	}
	for _, want := range []string{"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_PHONE_NUMBER"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	setRequired(t)
	t.Setenv("LEDGER_BACKEND", "postgres")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "LEDGER_DSN") {
		t.Fatalf("expected LEDGER_DSN error, got %v", err)
	}

	t.Setenv("LEDGER_DSN", "postgres://dialer@localhost/coldcall")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Ledger.Backend != "postgres" {
		t.Errorf("backend = %q, want postgres", c.Ledger.Backend)
	}
}

func TestLoadInvalidBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("LEDGER_BACKEND", "dynamo")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "LEDGER_BACKEND") {
		t.Fatalf("expected LEDGER_BACKEND error, got %v", err)
	}
}

func TestLoadInvalidCallingHours(t *testing.T) {
	setRequired(t)
	t.Setenv("CALLING_HOURS_START", "18")
	t.Setenv("CALLING_HOURS_END", "9")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CALLING_HOURS_START") {
		t.Fatalf("expected calling hours error, got %v", err)
	}
}

func TestLoadNonIntegerPort(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_PORT", "not-a-port")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "APP_PORT") {
		t.Fatalf("expected APP_PORT error, got %v", err)
	}
}

func TestLoadMissingPublicBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PUBLIC_BASE_URL", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "PUBLIC_BASE_URL") {
		t.Fatalf("expected PUBLIC_BASE_URL error, got %v", err)
	}
}

func TestLoadNonHTTPPublicBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PUBLIC_BASE_URL", "dialer.example.com")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "PUBLIC_BASE_URL") {
		t.Fatalf("expected PUBLIC_BASE_URL scheme error, got %v", err)
	}
}

func TestLoadTrimsPublicBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PUBLIC_BASE_URL", "https://dialer.example.com/")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.App.PublicBaseURL != "https://dialer.example.com" {
		t.Errorf("base url = %q, want trailing slash trimmed", c.App.PublicBaseURL)
	}
}

func TestValidateAccumulatesErrors(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatal("expected errors for empty config")
	}
	msg := err.Error()
	if !strings.Contains(msg, "APP_ENV") || !strings.Contains(msg, "TWILIO_ACCOUNT_SID") {
		t.Errorf("expected accumulated errors, got: %v", msg)
	}
}
