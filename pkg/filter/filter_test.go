package filter

import (
	"os"
	"path/filepath"
	"testing"
)

func TestContainsProfanity(t *testing.T) {
	f := Default()

	tests := []struct {
		text string
		want bool
	}{
		{"Merhaba dünya", false},
		{"Nasılsın?", false},
		{"Sen gerizekalı mısın?", true},
		{"Aptal herif", true},
		{"Bu bir alan adıdır", false},
		{"Pipi ve kaka", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := f.ContainsProfanity(tt.text); got != tt.want {
				t.Errorf("ContainsProfanity(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCensor(t *testing.T) {
	f := Default()

	tests := []struct {
		text string
		want string
	}{
		{"Selam aptal", "Selam ***"},
		{"Kaka yapma", "*** yapma"},
		{"Normal bir cümle", "Normal bir cümle"},
		{"alan ve lan", "alan ve ***"},
		{"aptal, salak!", "***, ***!"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := f.Censor(tt.text); got != tt.want {
				t.Errorf("Censor(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestLongestWordCensoredFirst(t *testing.T) {
	f := New([]string{"mal", "mal adam"})
	if got := f.Censor("sen mal adam"); got != "sen ***" {
		t.Errorf("Censor = %q, want %q", got, "sen ***")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(path, []byte("# comment\nfoo\n\nBAR\nfoo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Len() != 2 {
		t.Errorf("Len = %d, want 2", f.Len())
	}
	if !f.ContainsProfanity("a Bar here") {
		t.Error("expected case-insensitive match for bar")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "missing.txt"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Len() == 0 {
		t.Error("expected built-in list")
	}
	if !f.ContainsProfanity("aptal") {
		t.Error("expected built-in list to contain aptal")
	}
}
