package validation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfigValidator_Required(t *testing.T) {
	cv := NewConfigValidator("TestConfig")
	cv.Required("Name", "")

	if !cv.HasErrors() {
		t.Error("Expected error for empty required field")
	}

	cv2 := NewConfigValidator("TestConfig")
	cv2.Required("Name", "value")

	if cv2.HasErrors() {
		t.Error("Expected no error for non-empty required field")
	}
}

func TestConfigValidator_RequiredDuration(t *testing.T) {
	cv := NewConfigValidator("TestConfig")
	cv.RequiredDuration("Backoff", 0).RequiredDuration("Window", -time.Second)

	if len(cv.Errors()) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(cv.Errors()))
	}
}

func TestConfigValidator_Greater(t *testing.T) {
	cv := NewConfigValidator("Election")
	cv.Greater("LeaderTimeout", time.Second, "HeartbeatInterval", time.Second)

	if !cv.HasErrors() {
		t.Error("Expected error for equal durations")
	}

	cv2 := NewConfigValidator("Election")
	cv2.Greater("LeaderTimeout", 3*time.Second, "HeartbeatInterval", time.Second)

	if cv2.HasErrors() {
		t.Error("Expected no error for greater duration")
	}
}

func TestConfigValidator_URL(t *testing.T) {
	cv := NewConfigValidator("Transport")
	cv.URL("ServerURL", "ws://localhost:8080", "ws", "wss")
	if cv.HasErrors() {
		t.Errorf("Expected ws URL to be valid: %v", cv.Validate())
	}

	cv2 := NewConfigValidator("Transport")
	cv2.URL("ServerURL", "http://localhost:8080", "ws", "wss").URL("Other", "not a url", "http")
	if len(cv2.Errors()) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(cv2.Errors()))
	}
}

func TestConfigValidator_OneOf(t *testing.T) {
	cv := NewConfigValidator("Channel")
	cv.OneOf("Kind", "memory", []string{"memory", "bus", "zmq"})
	if cv.HasErrors() {
		t.Error("Expected no error for allowed value")
	}

	cv.OneOf("Kind", "carrier-pigeon", []string{"memory", "bus", "zmq"})
	if !cv.HasErrors() {
		t.Error("Expected error for disallowed value")
	}
}

func TestConfigValidator_CustomAndWhen(t *testing.T) {
	sentinel := errors.New("bad peers")

	cv := NewConfigValidator("Channel")
	cv.When(false, func(cv *ConfigValidator) {
		cv.Required("Listen", "")
	})
	if cv.HasErrors() {
		t.Error("Expected When(false) to skip validations")
	}

	cv.When(true, func(cv *ConfigValidator) {
		cv.Custom("Peers", func() error { return sentinel })
	})
	if !errors.Is(cv.Validate(), sentinel) {
		t.Errorf("Expected wrapped sentinel, got %v", cv.Validate())
	}
}

func TestConfigValidator_ValidateCombinesErrors(t *testing.T) {
	cv := NewConfigValidator("Config")
	if err := cv.Validate(); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}

	cv.Required("A", "").Required("B", "")
	err := cv.Validate()
	if err == nil || !strings.Contains(err.Error(), "2 errors") {
		t.Errorf("Expected combined error, got %v", err)
	}
}
