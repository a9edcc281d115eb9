package camera

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestDirContextLoopsInNameOrder(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), Solid(4, 4, color.White))
	writePNG(t, filepath.Join(dir, "a.png"), Solid(2, 2, color.Black))
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644)

	c, err := NewDirContext(dir)
	if err != nil {
		t.Fatal(err)
	}
	s, err := c.NewStream(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	wantWidths := []int{2, 4, 2}
	for i, w := range wantWidths {
		f, err := s.Frame()
		if err != nil {
			t.Fatal(err)
		}
		if got := f.Image.Bounds().Dx(); got != w {
			t.Errorf("frame %d width = %d, want %d", i, got, w)
		}
		if f.Seq != uint64(i+1) {
			t.Errorf("frame %d seq = %d", i, f.Seq)
		}
	}

	s.Close()
	if _, err := s.Frame(); !errors.Is(err, ErrClosed) {
		t.Errorf("Frame after Close = %v", err)
	}
}

func TestDirContextEmpty(t *testing.T) {
	if _, err := NewDirContext(t.TempDir()); err == nil {
		t.Error("expected error for empty directory")
	}
	if _, err := NewDirContext(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestFakeContext(t *testing.T) {
	c := NewFakeContext()
	s, err := c.NewStream(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Frame(); err != nil {
		t.Fatal(err)
	}
	s.Close()
	if !c.Streams()[0].Closed() {
		t.Error("stream not marked closed")
	}

	if _, err := NewDeniedContext(nil).NewStream(DefaultConfig()); !errors.Is(err, ErrDenied) {
		t.Errorf("denied NewStream = %v", err)
	}
}
