// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package nodelog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"
)

// Options bound the size of a node's log footprint.
type Options struct {
	// MaxSize is the byte size at which the active log file rotates.
	// Zero means the default of 8 MiB.
	MaxSize int64

	// MaxArchives is how many compressed rotations to retain per
	// node. Zero means the default of 4.
	MaxArchives int
}

const (
	defaultMaxSize     = 8 << 20
	defaultMaxArchives = 4
)

// Sink is an append-only log destination for one node's output.
type Sink struct {
	mu      sync.Mutex
	file    *os.File
	size    int64
	path    string
	node    string
	dir     string
	options Options
}

// Open creates (or appends to) the log file for a node. The node name
// must already be validated by the descriptor layer; it becomes part
// of the file name.
func Open(dir, node string, options Options) (*Sink, error) {
	if options.MaxSize <= 0 {
		options.MaxSize = defaultMaxSize
	}
	if options.MaxArchives <= 0 {
		options.MaxArchives = defaultMaxArchives
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, node+".log")
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening node log %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat node log %s: %w", path, err)
	}

	return &Sink{
		file:    file,
		size:    info.Size(),
		path:    path,
		node:    node,
		dir:     dir,
		options: options,
	}, nil
}

// Path returns the active log file path.
func (s *Sink) Path() string { return s.path }

// Write appends to the active log file, rotating first when the write
// would push the file past the size limit.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return 0, fmt.Errorf("node log %s: sink is closed", s.path)
	}

	if s.size+int64(len(p)) > s.options.MaxSize && s.size > 0 {
		if err := s.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := s.file.Write(p)
	s.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing node log %s: %w", s.path, err)
	}
	return n, nil
}

// Close flushes and closes the active file. Further writes fail.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// rotateLocked compresses the active file into an lz4 archive, starts
// a fresh active file, and prunes archives beyond the retention count.
// Caller holds mu.
func (s *Sink) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing node log for rotation: %w", err)
	}
	s.file = nil

	archivePath := fmt.Sprintf("%s.%d.lz4", s.path, time.Now().UnixNano())
	if err := compressFile(s.path, archivePath); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("removing rotated node log: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("reopening node log %s: %w", s.path, err)
	}
	s.file = file
	s.size = 0

	s.pruneArchivesLocked()
	return nil
}

// compressFile streams src into an lz4-framed archive at dst.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s for compression: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating archive %s: %w", dst, err)
	}

	writer := lz4.NewWriter(out)
	if _, err := io.Copy(writer, in); err != nil {
		writer.Close()
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("compressing %s: %w", src, err)
	}
	if err := writer.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("finishing archive %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("closing archive %s: %w", dst, err)
	}
	return nil
}

// pruneArchivesLocked removes the oldest archives beyond MaxArchives.
// Archive names embed a nanosecond timestamp, so lexicographic order
// of equal-length names is chronological; sorting by name keeps this
// simple and deterministic. Prune failures are ignored — they only
// delay cleanup until the next rotation.
func (s *Sink) pruneArchivesLocked() {
	prefix := filepath.Base(s.path) + "."
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}

	var archives []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".lz4") {
			archives = append(archives, name)
		}
	}
	if len(archives) <= s.options.MaxArchives {
		return
	}

	sort.Strings(archives)
	for _, name := range archives[:len(archives)-s.options.MaxArchives] {
		os.Remove(filepath.Join(s.dir, name))
	}
}
