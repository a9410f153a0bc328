package models

import (
	"errors"
	"strings"
	"testing"

	apierrors "github.com/diogo/chathist/internal/errors"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid", "Valid Title", "Valid Title", false},
		{"trimmed", "  spaced out \t", "spaced out", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"exactly max", strings.Repeat("x", 100), strings.Repeat("x", 100), false},
		{"too long", strings.Repeat("x", 101), "", true},
		{"multibyte at max", strings.Repeat("é", 100), strings.Repeat("é", 100), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTitle(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeTitle(%q) expected error", tt.input)
				}
				if !errors.Is(err, apierrors.ErrValidation) {
					t.Errorf("error should be a ValidationError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeTitle(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValidChatID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"abc123", true},
		{"a_b-C", true},
		{"", false},
		{"../etc", false},
		{"with space", false},
	}

	for _, tt := range tests {
		if got := IsValidChatID(tt.id); got != tt.want {
			t.Errorf("IsValidChatID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestChat_DisplayTitle(t *testing.T) {
	if got := (Chat{Title: ""}).DisplayTitle(); got != UntitledPlaceholder {
		t.Errorf("DisplayTitle() = %q, want placeholder", got)
	}
	if got := (Chat{Title: "Go tips"}).DisplayTitle(); got != "Go tips" {
		t.Errorf("DisplayTitle() = %q", got)
	}
}

func TestParseVisibility(t *testing.T) {
	v, err := ParseVisibility("PUBLIC")
	if err != nil || v != VisibilityPublic {
		t.Errorf("ParseVisibility(PUBLIC) = %v, %v", v, err)
	}
	v, err = ParseVisibility("")
	if err != nil || v != VisibilityPrivate {
		t.Errorf("ParseVisibility(\"\") = %v, %v", v, err)
	}
	if _, err := ParseVisibility("secret"); err == nil {
		t.Error("ParseVisibility(secret) expected error")
	}
}

func TestPage_LastID(t *testing.T) {
	if (Page{}).LastID() != "" {
		t.Error("empty page should have empty LastID")
	}
	p := Page{Chats: []Chat{{ID: "a"}, {ID: "b"}}}
	if p.LastID() != "b" {
		t.Errorf("LastID() = %q, want b", p.LastID())
	}
}
