package auth

import (
	"testing"
	"time"
)

func TestMakeJWT(t *testing.T) {
	secret := "test-secret"

	token, err := MakeJWT("forms-host", secret, time.Hour)
	if err != nil {
		t.Fatalf("MakeJWT() error = %v", err)
	}

	if token == "" {
		t.Error("MakeJWT() returned empty token")
	}

	subject, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("ValidateJWT() error = %v", err)
	}

	if subject != "forms-host" {
		t.Errorf("ValidateJWT() = %v, want %v", subject, "forms-host")
	}
}

func TestMakeJWTRequiresSubject(t *testing.T) {
	if _, err := MakeJWT("", "secret", time.Hour); err == nil {
		t.Error("MakeJWT() with empty subject should fail")
	}
}

func TestValidateJWT(t *testing.T) {
	secret := "test-secret"

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr bool
	}{
		{
			name:    "Valid token",
			token:   mustMakeJWT("forms-host", secret, time.Hour),
			secret:  secret,
			wantErr: false,
		},
		{
			name:    "Invalid secret",
			token:   mustMakeJWT("forms-host", secret, time.Hour),
			secret:  "wrong-secret",
			wantErr: true,
		},
		{
			name:    "Expired token",
			token:   mustMakeJWT("forms-host", secret, -time.Hour),
			secret:  secret,
			wantErr: true,
		},
		{
			name:    "Malformed token",
			token:   "not.a.valid.token",
			secret:  secret,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateJWT(tt.token, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJWT() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func mustMakeJWT(subject, secret string, duration time.Duration) string {
	token, err := MakeJWT(subject, secret, duration)
	if err != nil {
		panic(err)
	}
	return token
}
