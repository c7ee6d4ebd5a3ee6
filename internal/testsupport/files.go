package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteCapture writes a capture buffer to path, creating parent directories.
func WriteCapture(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteCaptureSet writes one capture per cylinder/head into dir using
// pattern (e.g. "c%02d_h%d.bin"). build returns the buffer for a track, or
// nil to leave it missing.
func WriteCaptureSet(t testing.TB, dir, pattern string, heads, cylinders int, build func(cyl, head int) []byte) {
	t.Helper()

	for cyl := 0; cyl < cylinders; cyl++ {
		for head := 0; head < heads; head++ {
			data := build(cyl, head)
			if data == nil {
				continue
			}
			WriteCapture(t, filepath.Join(dir, fmt.Sprintf(pattern, cyl, head)), data)
		}
	}
}
