package audiofile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "audio"), "http://localhost:8765/", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestSaveAndURL(t *testing.T) {
	s := newTestStore(t)

	name, err := s.Save([]byte("ID3data"), ".mp3")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(name, ".mp3") {
		t.Errorf("name %q should end in .mp3", name)
	}

	path, err := s.Path(name)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "ID3data" {
		t.Errorf("read back %q, %v", data, err)
	}

	if got, want := s.URL(name), "http://localhost:8765/audio/"+name; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}

	if _, err := s.Save([]byte("x"), ".exe"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName for .exe, got %v", err)
	}
}

func TestSaveWAV(t *testing.T) {
	s := newTestStore(t)

	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	name, err := s.SaveWAV(samples, 16000, 1)
	if err != nil {
		t.Fatalf("SaveWAV: %v", err)
	}

	path, _ := s.Path(name)
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("expected a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("format = %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(samples))
	}
	if buf.Data[999] != 999 {
		t.Errorf("sample 999 = %d", buf.Data[999])
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"", "../secret.mp3", "a/b.mp3", ".hidden.mp3", "notes.txt", "x.mp3/.."} {
		if _, err := s.Path(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Path(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)

	oldName, _ := s.Save([]byte("old"), ".mp3")
	newName, _ := s.Save([]byte("new"), ".wav")
	other := filepath.Join(s.Dir(), "keep.txt")
	os.WriteFile(other, []byte("x"), 0o644)

	oldPath, _ := s.Path(oldName)
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatal(err)
	}
	os.Chtimes(other, past, past)

	n, err := s.Prune(10 * time.Minute)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("old file should be gone")
	}
	newPath, _ := s.Path(newName)
	if _, err := os.Stat(newPath); err != nil {
		t.Error("recent file should remain")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-audio file should remain")
	}
}

func TestRunJanitorStopsOnCancel(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.RunJanitor(ctx, 5*time.Millisecond, time.Minute) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunJanitor returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	name, _ := s.Save([]byte("x"), ".wav")
	if err := s.Remove(name); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(name); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}
