package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_RoundTrip(t *testing.T) {
	osfs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "artifacts")

	if err := osfs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	path := filepath.Join(dir, "model.cbor")
	if err := osfs.WriteFile(path, []byte{0xa0}, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	info, err := osfs.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 1 {
		t.Errorf("expected size 1, got %d", info.Size())
	}

	names, err := osfs.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(names) != 1 || names[0] != "model.cbor" {
		t.Errorf("unexpected dir listing: %v", names)
	}

	if err := osfs.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if osfs.Exists(path) {
		t.Error("expected file to be removed")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/srv/artifacts/model.cbor", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/srv/artifacts/model.cbor")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}
	if mfs.Reads() != 1 {
		t.Errorf("expected 1 read, got %d", mfs.Reads())
	}

	// Parent directories are implied by the write.
	for _, dir := range []string{"/srv", "/srv/artifacts"} {
		info, err := mfs.Stat(dir)
		if err != nil {
			t.Fatalf("Stat(%s) failed: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", dir)
		}
	}
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.ReadFile("artifacts/model.cbor")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	_, err = mfs.Stat("artifacts/model.cbor")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_StatSize(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("artifacts/empty.cbor", nil, 0644)

	info, err := mfs.Stat("artifacts/empty.cbor")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 0 || info.IsDir() {
		t.Errorf("unexpected info: size=%d dir=%v", info.Size(), info.IsDir())
	}
	if info.Mode() != os.FileMode(0644) || info.Name() != "empty.cbor" {
		t.Errorf("unexpected info: mode=%v name=%s", info.Mode(), info.Name())
	}
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("artifacts/preprocessor.cbor", []byte{1}, 0644)
	_ = mfs.WriteFile("artifacts/model.cbor", []byte{1}, 0644)
	_ = mfs.MkdirAll("artifacts/old", 0755)
	_ = mfs.WriteFile("artifacts/old/model.cbor", []byte{1}, 0644)

	names, err := mfs.ReadDir("artifacts")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	want := []string{"model.cbor", "old", "preprocessor.cbor"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}

	if _, err := mfs.ReadDir("missing"); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestMemoryFileSystem_RemoveAll(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/app/artifacts/model.cbor", []byte{1}, 0644)
	_ = mfs.WriteFile("/app/artifacts-old/model.cbor", []byte{1}, 0644)

	if err := mfs.RemoveAll("/app/artifacts"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if mfs.Exists("/app/artifacts") || mfs.Exists("/app/artifacts/model.cbor") {
		t.Error("expected artifacts directory to be removed")
	}
	if !mfs.Exists("/app/artifacts-old/model.cbor") {
		t.Error("sibling with shared prefix should survive")
	}
}
