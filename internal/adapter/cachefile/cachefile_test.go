package cachefile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheFile_WriteAdvancesSize(t *testing.T) {
	dir := t.TempDir()
	cf, err := Open(filepath.Join(dir, "object.bin"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cf.Close()

	n, err := cf.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 bytes written, got %d", n)
	}
	if got := cf.SizeWritten(); got != 5 {
		t.Errorf("expected SizeWritten 5, got %d", got)
	}

	if _, err := cf.Write([]byte(" world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := cf.SizeWritten(); got != 11 {
		t.Errorf("expected SizeWritten 11, got %d", got)
	}
}

func TestCacheFile_OpenResumesExistingLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "object.bin")

	cf, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := cf.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := cf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if got := reopened.SizeWritten(); got != 10 {
		t.Errorf("expected resumed SizeWritten 10, got %d", got)
	}
}

func TestCacheFile_Rewind(t *testing.T) {
	dir := t.TempDir()
	cf, err := Open(filepath.Join(dir, "object.bin"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cf.Close()

	if _, err := cf.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := cf.Rewind(4); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if got := cf.SizeWritten(); got != 4 {
		t.Errorf("expected SizeWritten 4 after rewind, got %d", got)
	}

	if _, err := cf.Write([]byte("XY")); err != nil {
		t.Fatalf("Write after rewind: %v", err)
	}

	reader, err := cf.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer reader.Close()

	got, err := io.ReadAll(io.LimitReader(reader, 6))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "0123XY" {
		t.Errorf("expected %q after rewind+write, got %q", "0123XY", got)
	}
}

func TestCacheFile_WaitForGrowthWakesOnWrite(t *testing.T) {
	dir := t.TempDir()
	cf, err := Open(filepath.Join(dir, "object.bin"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cf.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan int64, 1)
	go func() {
		size, grew := cf.WaitForGrowth(ctx, 0)
		if !grew {
			done <- -1
			return
		}
		done <- size
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := cf.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case size := <-done:
		if size != 3 {
			t.Errorf("expected WaitForGrowth to observe size 3, got %d", size)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for growth notification")
	}
}

func TestCacheFile_WaitForGrowthReturnsOnClose(t *testing.T) {
	dir := t.TempDir()
	cf, err := Open(filepath.Join(dir, "object.bin"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx := context.Background()
	done := make(chan bool, 1)
	go func() {
		_, grew := cf.WaitForGrowth(ctx, 0)
		done <- grew
	}()

	time.Sleep(20 * time.Millisecond)
	if err := cf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case grew := <-done:
		if grew {
			t.Error("expected grew=false after Close with no writes")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close to wake waiter")
	}
}

func TestRegistry_SharesInstanceAcrossAcquire(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir)

	first, err := reg.Acquire("debian/pool/a.deb")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	second, err := reg.Acquire("debian/pool/a.deb")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if first != second {
		t.Error("expected Acquire to return the same *CacheFile for the same path")
	}

	if _, err := first.Write([]byte("data")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := second.SizeWritten(); got != 4 {
		t.Errorf("expected second reference to observe the write, got %d", got)
	}

	reg.Release("debian/pool/a.deb")
	reg.Release("debian/pool/a.deb")

	if _, ok := reg.entries["debian/pool/a.deb"]; ok {
		t.Error("expected entry to be dropped after matching Release calls")
	}
}

func TestRegistry_CompletionMarker(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir)

	if reg.IsComplete("debian/pool/b.deb") {
		t.Error("expected IsComplete to be false before MarkComplete")
	}

	if err := reg.MarkComplete("debian/pool/b.deb"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}

	if !reg.IsComplete("debian/pool/b.deb") {
		t.Error("expected IsComplete to be true after MarkComplete")
	}

	if _, err := os.Stat(filepath.Join(dir, "debian/pool/b.deb.complete")); err != nil {
		t.Errorf("expected marker file on disk: %v", err)
	}
}
