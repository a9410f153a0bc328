package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apierrors "github.com/diogo/chathist/internal/errors"
)

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestParseCookies(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{"dict format", `{"chathist_session": "tok"}`, "tok", false},
		{"dict missing", `{"other": "x"}`, "", true},
		{"dict empty value", `{"chathist_session": ""}`, "", true},
		{"list format", `[{"name": "chathist_session", "value": "tok"}]`, "tok", false},
		{"list extra cookies", `[{"name": "a", "value": "1"}, {"name": "chathist_session", "value": "tok"}]`, "tok", false},
		{"list missing", `[{"name": "a", "value": "1"}]`, "", true},
		{"invalid json", `{not json`, "", true},
		{"neither format", `42`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookies, err := parseCookies([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCookies() error = %v", err)
			}
			if cookies.GetSession() != tt.want {
				t.Errorf("Session = %q, want %q", cookies.GetSession(), tt.want)
			}
		})
	}
}

func TestValidateCookies(t *testing.T) {
	if ValidateCookies(nil) == nil {
		t.Error("nil cookies should be invalid")
	}
	if ValidateCookies(&Cookies{}) == nil {
		t.Error("empty session should be invalid")
	}
	if err := ValidateCookies(&Cookies{Session: "x"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadCookies_FileNotExists(t *testing.T) {
	setupHome(t)

	_, err := LoadCookies()
	if !errors.Is(err, apierrors.ErrNoCookies) {
		t.Errorf("LoadCookies() error = %v, want ErrNoCookies", err)
	}
}

func TestSaveAndLoadCookies(t *testing.T) {
	home := setupHome(t)

	if err := SaveCookies(&Cookies{Session: "secret-token"}); err != nil {
		t.Fatalf("SaveCookies() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(home, DirName, "cookies.json"))
	if err != nil {
		t.Fatalf("cookies file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("cookies file mode = %o, want 600", perm)
	}

	loaded, err := LoadCookies()
	if err != nil {
		t.Fatalf("LoadCookies() error = %v", err)
	}
	if loaded.GetSession() != "secret-token" {
		t.Errorf("Session = %q", loaded.GetSession())
	}
}

func TestSaveCookies_RejectsEmpty(t *testing.T) {
	setupHome(t)
	if err := SaveCookies(&Cookies{}); err == nil {
		t.Error("expected error saving empty session")
	}
}

func TestImportCookies(t *testing.T) {
	home := setupHome(t)

	if err := ImportCookies(filepath.Join(home, "missing.json")); err == nil {
		t.Error("expected error for missing source")
	}

	source := filepath.Join(home, "export.json")
	if err := os.WriteFile(source, []byte(`[{"name": "chathist_session", "value": "imported"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ImportCookies(source); err != nil {
		t.Fatalf("ImportCookies() error = %v", err)
	}

	loaded, err := LoadCookies()
	if err != nil {
		t.Fatalf("LoadCookies() error = %v", err)
	}
	if loaded.GetSession() != "imported" {
		t.Errorf("Session = %q, want imported", loaded.GetSession())
	}
}

func TestSetSession(t *testing.T) {
	c := &Cookies{}
	c.SetSession("a")
	if c.GetSession() != "a" {
		t.Errorf("GetSession() = %q", c.GetSession())
	}
}
