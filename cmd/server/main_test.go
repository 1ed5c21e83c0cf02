package main

import (
	"testing"

	"retailpos/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	weak := []config.Config{
		{JWTSecret: "short", UnlockCode: "7391"},
		{JWTSecret: "0123456789abcdef0123456789abcdef", UnlockCode: "1234"},
		{JWTSecret: "0123456789abcdef0123456789abcdef", UnlockCode: "7777"},
		{JWTSecret: "0123456789abcdef0123456789abcdef", UnlockCode: "9876"},
		{JWTSecret: "0123456789abcdef0123456789abcdef", UnlockCode: "73915"},
		{JWTSecret: "0123456789abcdef0123456789abcdef", UnlockCode: "73a1"},
	}
	for _, cfg := range weak {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("expected config with unlock code %q to be rejected", cfg.UnlockCode)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{JWTSecret: "0123456789abcdef0123456789abcdef", UnlockCode: "7391"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
