package spool

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalSpoolRoundTrip(t *testing.T) {
	ctx := context.Background()
	sp, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}

	content := "sku,name\na-1,Widget\n"
	n, err := sp.Put(ctx, "uploads/t1.csv", strings.NewReader(content), 0)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n != int64(len(content)) {
		t.Fatalf("wrote %d bytes, want %d", n, len(content))
	}

	// Imports read the same key twice: once to count, once to chunk.
	for i := 0; i < 2; i++ {
		rc, err := sp.Open(ctx, "uploads/t1.csv")
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil || string(data) != content {
			t.Fatalf("read #%d: %q err=%v", i+1, data, err)
		}
	}

	if err := sp.Remove(ctx, "uploads/t1.csv"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := sp.Open(ctx, "uploads/t1.csv"); err == nil {
		t.Fatalf("open after remove should fail")
	}
	if err := sp.Remove(ctx, "uploads/t1.csv"); err != nil {
		t.Fatalf("removing an absent key should be a no-op, got %v", err)
	}
}

func TestLocalSpoolSizeCap(t *testing.T) {
	ctx := context.Background()
	sp, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}

	_, err = sp.Put(ctx, "uploads/big.csv", strings.NewReader(strings.Repeat("x", 100)), 50)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected size cap error, got %v", err)
	}
	if _, err := sp.Open(ctx, "uploads/big.csv"); err == nil {
		t.Fatalf("partial file should not be left behind")
	}

	// Exactly at the cap is fine.
	if _, err := sp.Put(ctx, "uploads/ok.csv", strings.NewReader(strings.Repeat("x", 50)), 50); err != nil {
		t.Fatalf("put at cap: %v", err)
	}
}

func TestLocalSpoolConfinesKeys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sp, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("new local: %v", err)
	}

	if _, err := sp.Put(ctx, "../escape.csv", strings.NewReader("x"), 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.csv")); err != nil {
		t.Fatalf("key should be confined to the base dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.csv")); err == nil {
		t.Fatalf("key escaped the base dir")
	}
}
