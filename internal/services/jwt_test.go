package services_test

import (
	"testing"
	"time"

	"shellgame-backend/internal/services"
)

func TestJWTRoundTrip(t *testing.T) {
	jwtService := services.NewJWTService("test-secret", time.Hour)

	token, err := jwtService.GenerateToken("addr-1", "keystore")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := jwtService.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}

	if claims.Address != "addr-1" {
		t.Errorf("Expected address addr-1, got %s", claims.Address)
	}
	if claims.ProviderID != "keystore" {
		t.Errorf("Expected provider keystore, got %s", claims.ProviderID)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := services.NewJWTService("secret-a", time.Hour).GenerateToken("addr-1", "keystore")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := services.NewJWTService("secret-b", time.Hour).ValidateToken(token); err == nil {
		t.Error("Expected validation to fail with the wrong secret")
	}
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	jwtService := services.NewJWTService("test-secret", -time.Minute)

	token, err := jwtService.GenerateToken("addr-1", "keystore")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := jwtService.ValidateToken(token); err == nil {
		t.Error("Expected validation to fail for an expired token")
	}
}

func TestJWTRejectsGarbage(t *testing.T) {
	jwtService := services.NewJWTService("test-secret", time.Hour)

	if _, err := jwtService.ValidateToken("not.a.token"); err == nil {
		t.Error("Expected validation to fail for a malformed token")
	}
}
