package authbase_test

import (
	"testing"

	auth "github.com/srijanm/authbase"
)

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name      string
		creds     auth.Credentials
		wantCode  string
		wantField string
	}{
		{
			name:  "valid",
			creds: auth.Credentials{Name: "Jane", Email: "jane@example.com", Password: "password123"},
		},
		{
			name:      "missing name",
			creds:     auth.Credentials{Email: "jane@example.com", Password: "password123"},
			wantCode:  auth.ErrCodeMissingField,
			wantField: "name",
		},
		{
			name:      "missing email",
			creds:     auth.Credentials{Name: "Jane", Password: "password123"},
			wantCode:  auth.ErrCodeMissingField,
			wantField: "email",
		},
		{
			name:      "bad email",
			creds:     auth.Credentials{Name: "Jane", Email: "not-an-email", Password: "password123"},
			wantCode:  auth.ErrCodeInvalidEmail,
			wantField: "email",
		},
		{
			name:      "bad email no tld",
			creds:     auth.Credentials{Name: "Jane", Email: "jane@example", Password: "password123"},
			wantCode:  auth.ErrCodeInvalidEmail,
			wantField: "email",
		},
		{
			name:      "short password",
			creds:     auth.Credentials{Name: "Jane", Email: "jane@example.com", Password: "short"},
			wantCode:  auth.ErrCodeWeakPassword,
			wantField: "password",
		},
		{
			name:      "missing password",
			creds:     auth.Credentials{Name: "Jane", Email: "jane@example.com"},
			wantCode:  auth.ErrCodeMissingField,
			wantField: "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateRegistration(&tt.creds)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if err.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, err.Code)
			}
			if err.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, err.Field)
			}
		})
	}
}

func TestValidateLogin(t *testing.T) {
	tests := []struct {
		name     string
		creds    auth.Credentials
		wantCode string
	}{
		{name: "valid", creds: auth.Credentials{Email: "jane@example.com", Password: "whatever"}},
		// Login does not length-check: a short password just fails verify.
		{name: "short password ok here", creds: auth.Credentials{Email: "jane@example.com", Password: "x"}},
		{name: "missing email", creds: auth.Credentials{Password: "whatever"}, wantCode: auth.ErrCodeMissingField},
		{name: "bad email", creds: auth.Credentials{Email: "nope", Password: "whatever"}, wantCode: auth.ErrCodeInvalidEmail},
		{name: "missing password", creds: auth.Credentials{Email: "jane@example.com"}, wantCode: auth.ErrCodeMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateLogin(&tt.creds)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || err.Code != tt.wantCode {
				t.Errorf("expected code %q, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane@Example.COM", "jane@example.com"},
		{"  jane@example.com  ", "jane@example.com"},
		{"jane@example.com", "jane@example.com"},
	}
	for _, tt := range tests {
		if got := auth.NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
