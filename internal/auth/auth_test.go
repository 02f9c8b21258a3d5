package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestStaticTokenValidate(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFuncValidator(t *testing.T) {
	validator := FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	})

	if err := validator.Validate("bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad token, got %v", err)
	}
	if err := validator.Validate("ok"); err != nil {
		t.Fatalf("expected success for ok token, got %v", err)
	}
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ingest?token=q", nil)
	if got := FromRequest(req); got != "q" {
		t.Fatalf("query token: %q", got)
	}
	req.Header.Set("Authorization", "Bearer  abc ")
	if got := FromRequest(req); got != "abc" {
		t.Fatalf("bearer token: %q", got)
	}
	req.Header.Set("Authorization", "Basic abc")
	if got := FromRequest(req); got != "" {
		t.Fatalf("non-bearer header should not fall back to query: %q", got)
	}
}
