package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFormatMkdirTouchWriteCatRoundTrip(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "disk.img")
	ctx := context.Background()

	if err := cmdFormat(ctx, []string{image}); err != nil {
		t.Fatalf("cmdFormat: %v", err)
	}
	if err := cmdMkdir(ctx, []string{image, "/home"}); err != nil {
		t.Fatalf("cmdMkdir: %v", err)
	}
	if err := cmdTouch(ctx, []string{image, "/home/hello"}); err != nil {
		t.Fatalf("cmdTouch: %v", err)
	}
	if err := cmdWrite(ctx, []string{image, "/home/hello", "hello, kernel"}); err != nil {
		t.Fatalf("cmdWrite: %v", err)
	}

	got := captureStdout(t, func() {
		if err := cmdCat(ctx, []string{image, "/home/hello"}); err != nil {
			t.Fatalf("cmdCat: %v", err)
		}
	})
	if got != "hello, kernel" {
		t.Fatalf("cat output = %q, want %q", got, "hello, kernel")
	}

	if err := cmdRm(ctx, []string{image, "/home/hello"}); err != nil {
		t.Fatalf("cmdRm: %v", err)
	}
	if err := cmdRmdir(ctx, []string{image, "/home"}); err != nil {
		t.Fatalf("cmdRmdir: %v", err)
	}
}

func TestFormatRejectsWrongArgCount(t *testing.T) {
	if err := cmdFormat(context.Background(), nil); err == nil {
		t.Fatalf("cmdFormat with no args succeeded, want error")
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	w.Close()
	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	return string(buf[:n])
}
