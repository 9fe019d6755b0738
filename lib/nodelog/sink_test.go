// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package nodelog

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
)

func TestWriteAppends(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := Open(dir, "tracker_service", Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	for _, line := range []string{"starting\n", "listening\n"} {
		if _, err := sink.Write([]byte(line)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	data, err := os.ReadFile(sink.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "starting\nlistening\n" {
		t.Errorf("log content = %q", data)
	}
}

func TestReopenAppendsToExistingLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first, err := Open(dir, "recogniser", Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := first.Write([]byte("run one\n")); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := Open(dir, "recogniser", Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := second.Write([]byte("run two\n")); err != nil {
		t.Fatal(err)
	}
	second.Close()

	data, err := os.ReadFile(filepath.Join(dir, "recogniser.log"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "run one\nrun two\n" {
		t.Errorf("log content = %q", data)
	}
}

func TestRotationCompressesOldLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := Open(dir, "camera", Options{MaxSize: 64})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	original := strings.Repeat("frame received\n", 4) // 60 bytes
	if _, err := sink.Write([]byte(original)); err != nil {
		t.Fatal(err)
	}
	// This write pushes past MaxSize and forces a rotation first.
	if _, err := sink.Write([]byte("after rotation\n")); err != nil {
		t.Fatal(err)
	}

	archives, err := filepath.Glob(filepath.Join(dir, "camera.log.*.lz4"))
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) != 1 {
		t.Fatalf("archives = %v, want exactly one", archives)
	}

	// The archive decompresses back to the pre-rotation content.
	compressed, err := os.Open(archives[0])
	if err != nil {
		t.Fatal(err)
	}
	defer compressed.Close()

	var restored bytes.Buffer
	if _, err := io.Copy(&restored, lz4.NewReader(compressed)); err != nil {
		t.Fatalf("decompressing archive: %v", err)
	}
	if restored.String() != original {
		t.Errorf("archive content = %q, want %q", restored.String(), original)
	}

	// The active file holds only post-rotation output.
	active, err := os.ReadFile(sink.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(active) != "after rotation\n" {
		t.Errorf("active log = %q", active)
	}
}

func TestArchivePruning(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := Open(dir, "cashier", Options{MaxSize: 8, MaxArchives: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	// Each ten-byte write exceeds MaxSize and rotates the previous one.
	for i := 0; i < 6; i++ {
		if _, err := sink.Write([]byte("0123456789")); err != nil {
			t.Fatal(err)
		}
	}

	archives, err := filepath.Glob(filepath.Join(dir, "cashier.log.*.lz4"))
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) > 2 {
		t.Errorf("retained %d archives, want at most 2", len(archives))
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	t.Parallel()

	sink, err := Open(t.TempDir(), "tracker", Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sink.Close()

	if _, err := sink.Write([]byte("late\n")); err == nil {
		t.Error("write after Close should fail")
	}
}
