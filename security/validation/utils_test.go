package validation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mezonai/starchain/errors"
)

func TestValidateShortTextLength(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		value     string
		wantErr   bool
		wantCode  errors.NetworkErrorCode
		wantMsg   string
	}{
		{
			name:      "valid",
			fieldName: RAField,
			value:     "16h 29m 1.0s",
			wantErr:   false,
		},
		{
			name:      "empty string",
			fieldName: "empty_field",
			value:     "",
			wantErr:   false,
		},
		{
			name:      "non ascii declination",
			fieldName: DecField,
			value:     "-26° 29' 24.9",
			wantErr:   false,
		},
		{
			name:      "injection pattern",
			fieldName: MagField,
			value:     "${jndi:ldap://x}",
			wantErr:   true,
			wantCode:  errors.ErrCodeInvalidRequest,
			wantMsg:   fmt.Sprintf(errors.ErrMsgInvalidCharacters, MagField),
		},
		{
			name:      "too long",
			fieldName: "too_long_field",
			value:     makeString(MaxShortTextLength + 1),
			wantErr:   true,
			wantCode:  errors.ErrCodeInvalidRequest,
			wantMsg:   fmt.Sprintf(errors.ErrMsgShortTextTooLong, MaxShortTextLength, "too_long_field"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNetworkError(t, ValidateShortTextLength(tt.fieldName, tt.value), tt.wantErr, tt.wantCode, tt.wantMsg)
		})
	}
}

func TestValidateLongTextLength(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		value     string
		wantErr   bool
		wantCode  errors.NetworkErrorCode
		wantMsg   string
	}{
		{
			name:      "valid",
			fieldName: "content",
			value:     "this is ok",
			wantErr:   false,
		},
		{
			name:      "json string",
			fieldName: "json_field",
			value:     "{\"key\": \"value\"}",
			wantErr:   false,
		},
		{
			name:      "injection pattern",
			fieldName: "injection_field",
			value:     "test {{ alert(1) }}",
			wantErr:   true,
			wantCode:  errors.ErrCodeInvalidRequest,
			wantMsg:   fmt.Sprintf(errors.ErrMsgInvalidCharacters, "injection_field"),
		},
		{
			name:      "too long",
			fieldName: "too_long_field",
			value:     makeString(MaxLongTextLength + 1),
			wantErr:   true,
			wantCode:  errors.ErrCodeInvalidRequest,
			wantMsg:   fmt.Sprintf(errors.ErrMsgLongTextTooLong, MaxLongTextLength, "too_long_field"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNetworkError(t, ValidateLongTextLength(tt.fieldName, tt.value), tt.wantErr, tt.wantCode, tt.wantMsg)
		})
	}
}

func TestValidateStory(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		wantErr  bool
		wantCode errors.NetworkErrorCode
		wantMsg  string
	}{
		{
			name:    "valid",
			value:   "Found star using https://www.google.com/sky/",
			wantErr: false,
		},
		{
			name:    "exactly at limit",
			value:   makeString(MaxStoryBytes),
			wantErr: false,
		},
		{
			name:     "over limit",
			value:    makeString(MaxStoryBytes + 1),
			wantErr:  true,
			wantCode: errors.ErrCodeInvalidStar,
			wantMsg:  fmt.Sprintf(errors.ErrMsgLongTextTooLong, MaxStoryBytes, StoryField),
		},
		{
			name:     "non ascii",
			value:    "étoile",
			wantErr:  true,
			wantCode: errors.ErrCodeInvalidStar,
			wantMsg:  fmt.Sprintf(errors.ErrMsgNonASCII, StoryField),
		},
		{
			name:     "injection",
			value:    "eval(document.cookie)",
			wantErr:  true,
			wantCode: errors.ErrCodeInvalidRequest,
			wantMsg:  fmt.Sprintf(errors.ErrMsgInvalidCharacters, StoryField),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNetworkError(t, ValidateStory(tt.value), tt.wantErr, tt.wantCode, tt.wantMsg)
		})
	}
}

func TestValidateRequired(t *testing.T) {
	if err := ValidateRequired(RAField, "16h"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertNetworkError(t, ValidateRequired(RAField, "  \t"), true,
		errors.ErrCodeInvalidRequest, fmt.Sprintf(errors.ErrMsgRequiredField, RAField))
}

func assertNetworkError(t *testing.T, err error, wantErr bool, wantCode errors.NetworkErrorCode, wantMsg string) {
	t.Helper()
	if !wantErr {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return
	}

	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	netErr, ok := err.(*errors.NetworkError)
	if !ok {
		t.Fatalf("expected NetworkError, got %T", err)
	}

	if netErr.Code != wantCode {
		t.Fatalf("expected code %s, got %s", wantCode, netErr.Code)
	}

	if netErr.Message != wantMsg {
		t.Fatalf("expected message %q, got %q", wantMsg, netErr.Message)
	}
}

// helper
func makeString(n int) string {
	return strings.Repeat("a", n)
}
