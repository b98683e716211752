package auth

import (
	"testing"
)

func TestGenerateJWT(t *testing.T) {
	userID := "7f9c9d60-2f0b-4c7a-9a3e-58c1f6b1a001"
	email := "test@example.com"
	plan := "member"
	secret := "test-secret-key-minimum-32-characters-long"
	expirationHours := 24

	token, err := GenerateJWT(userID, email, plan, secret, expirationHours)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	if token == "" {
		t.Error("Token should not be empty")
	}

	if len(token) < 10 {
		t.Error("Token seems too short")
	}
}

func TestValidateJWT(t *testing.T) {
	userID := "7f9c9d60-2f0b-4c7a-9a3e-58c1f6b1a001"
	email := "test@example.com"
	plan := "business"
	secret := "test-secret-key-minimum-32-characters-long"
	expirationHours := 24

	token, err := GenerateJWT(userID, email, plan, secret, expirationHours)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("Failed to validate JWT: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected UserID %s, got %s", userID, claims.UserID)
	}

	if claims.Email != email {
		t.Errorf("Expected Email %s, got %s", email, claims.Email)
	}

	if claims.Plan != plan {
		t.Errorf("Expected Plan %s, got %s", plan, claims.Plan)
	}
}

func TestValidateJWTInvalidToken(t *testing.T) {
	secret := "test-secret-key-minimum-32-characters-long"

	_, err := ValidateJWT("invalid.token.here", secret)
	if err == nil {
		t.Error("ValidateJWT should return error for invalid token")
	}

	_, err = ValidateJWT("", secret)
	if err == nil {
		t.Error("ValidateJWT should return error for empty token")
	}
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("u1", "test@example.com", "member", "secret-one-minimum-32-characters-long!!", 24)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	_, err = ValidateJWT(token, "secret-two-minimum-32-characters-long!!")
	if err == nil {
		t.Error("ValidateJWT should reject token signed with a different secret")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if !CheckPassword("correct horse battery staple", hash) {
		t.Error("CheckPassword should accept the original password")
	}

	if CheckPassword("wrong password", hash) {
		t.Error("CheckPassword should reject a different password")
	}
}
