// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHashFileStable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "node-binary")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexec tracker\n"), 0755); err != nil {
		t.Fatal(err)
	}

	first, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	second, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if first != second {
		t.Error("hashing the same file twice produced different digests")
	}
}

func TestHashFileDetectsChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "node-binary")
	if err := os.WriteFile(path, []byte("version one"), 0755); err != nil {
		t.Fatal(err)
	}
	before, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	if err := os.WriteFile(path, []byte("version two"), 0755); err != nil {
		t.Fatal(err)
	}
	after, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	if before == after {
		t.Error("digest did not change when file content changed")
	}
}

func TestHashFileMissing(t *testing.T) {
	t.Parallel()

	_, err := HashFile(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !strings.Contains(err.Error(), "opening") {
		t.Errorf("error %q should name the failing operation", err)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	t.Parallel()

	var digest [DigestSize]byte
	for i := range digest {
		digest[i] = byte(i)
	}

	formatted := FormatDigest(digest)
	if len(formatted) != DigestSize*2 {
		t.Fatalf("formatted digest length = %d, want %d", len(formatted), DigestSize*2)
	}

	parsed, err := ParseDigest(formatted)
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if parsed != digest {
		t.Error("parse(format(digest)) != digest")
	}
}

func TestParseDigestRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := ParseDigest("not hex"); err == nil {
		t.Error("expected an error for non-hex input")
	}
	if _, err := ParseDigest("abcd"); err == nil {
		t.Error("expected an error for a short digest")
	}
}
