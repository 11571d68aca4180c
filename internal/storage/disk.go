// Package storage implements the byte-storage collaborator of the chat core:
// a directory-backed blob store with its own capacity accounting, plus the
// thumbnail hook. The core only ever sees URLs; paths stay in here.
package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

const (
	urlPrefix  = "/uploads/"
	voiceDir   = "voice"
	unsafeName = `[^a-zA-Z0-9_.-]`
)

var unsafeNamePattern = regexp.MustCompile(unsafeName)

// DiskStore stores blobs under a root directory and accounts used bytes
// against a fixed capacity, so free-space checks stay deterministic without
// probing the filesystem.
type DiskStore struct {
	root     string
	capacity int64

	mu   sync.Mutex
	used int64
}

// NewDiskStore opens (creating if needed) the storage root and scans it to
// initialize the byte accounting.
func NewDiskStore(root string, capacity int64) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(root, voiceDir), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	var used int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		used += info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan storage root: %w", err)
	}

	return &DiskStore{root: root, capacity: capacity, used: used}, nil
}

// Root returns the directory served under the /uploads/ URL prefix.
func (d *DiskStore) Root() string { return d.root }

// Store writes a blob under a collision-free name derived from the original
// filename and returns its URL.
func (d *DiskStore) Store(name string, r io.Reader) (string, int64, error) {
	safe := unsafeNamePattern.ReplaceAllString(name, "_")
	unique := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), uuid.New().String(), safe)
	return d.write(unique, r)
}

// StoreVoice writes a voice blob into the voice subdirectory.
func (d *DiskStore) StoreVoice(r io.Reader) (string, int64, error) {
	unique := fmt.Sprintf("%s/voice-%d-%s.webm", voiceDir, time.Now().UnixMilli(), uuid.New().String())
	return d.write(unique, r)
}

func (d *DiskStore) write(rel string, r io.Reader) (string, int64, error) {
	path := filepath.Join(d.root, filepath.FromSlash(rel))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, apperrors.Wrap(apperrors.CodeInternal, "store blob", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, apperrors.Wrap(apperrors.CodeInternal, "store blob", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capacity > 0 && d.used+n > d.capacity {
		_ = os.Remove(path)
		return "", 0, apperrors.ResourceExhausted("storage capacity exceeded")
	}
	d.used += n
	return urlPrefix + rel, n, nil
}

// Delete removes a stored blob by URL. A blob that is already gone is not an
// error.
func (d *DiskStore) Delete(url string) error {
	rel, ok := strings.CutPrefix(url, urlPrefix)
	if !ok || rel == "" || strings.Contains(rel, "..") {
		return apperrors.InvalidArg("not a stored blob url")
	}
	path := filepath.Join(d.root, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	d.mu.Lock()
	d.used -= info.Size()
	if d.used < 0 {
		d.used = 0
	}
	d.mu.Unlock()
	return nil
}

// FreeBytes reports the remaining capacity.
func (d *DiskStore) FreeBytes() int64 {
	if d.capacity <= 0 {
		return 1 << 40
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	free := d.capacity - d.used
	if free < 0 {
		return 0
	}
	return free
}

// TotalBytes reports the configured capacity.
func (d *DiskStore) TotalBytes() int64 { return d.capacity }
