// Package archive scans an uploaded export archive and classifies its
// textual entries into record fragments for normalization.
//
// The archive is a ZIP produced by the platform's data-export tool. Entries
// are read one at a time through the zip reader (never decompressed as a
// whole), known binary payloads are skipped by extension, and each surviving
// entry is classified by path convention. Multiple entries may map to the
// same kind (followers_1.json, followers_2.json) and all of them are
// forwarded.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
)

// ErrUnreadable reports an archive that cannot be opened at all.
// It is the only fatal condition in this package.
var ErrUnreadable = errors.New("archive unreadable")

// Kind identifies the record type a fragment carries.
type Kind string

const (
	KindFollowers  Kind = "followers"
	KindFollowing  Kind = "following"
	KindPending    Kind = "pending"
	KindUnfollowed Kind = "unfollowed"
	KindUnknown    Kind = "unknown"
)

// Fragment is one classified textual entry from the archive.
type Fragment struct {
	Path    string
	Kind    Kind
	Content []byte
}

// Config configures a Scanner.
type Config struct {
	// MaxEntryBytes caps the decompressed size read per entry (default: 32 MB).
	MaxEntryBytes int64

	// Logger for skip/classification diagnostics.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxEntryBytes <= 0 {
		c.MaxEntryBytes = 32 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Scanner enumerates and classifies archive entries.
type Scanner struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Scanner with the given configuration.
func New(cfg Config) *Scanner {
	cfg.defaults()
	return &Scanner{cfg: cfg, logger: cfg.Logger}
}

// binaryExts lists extensions skipped outright without decoding.
var binaryExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".heic": true, ".bmp": true, ".ico": true, ".svg": true,
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
	".mp3": true, ".m4a": true, ".wav": true,
	".pdf": true, ".zip": true, ".gz": true,
	".db": true, ".sqlite": true,
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true,
}

// Classify maps an entry path to a fragment kind by case-insensitive
// substring convention.
func Classify(entryPath string) Kind {
	p := strings.ToLower(entryPath)
	switch {
	case strings.Contains(p, "followers_"):
		return KindFollowers
	case strings.Contains(p, "following.json"):
		return KindFollowing
	case strings.Contains(p, "pending_follow_requests.json"):
		return KindPending
	case strings.Contains(p, "recently_unfollowed_profiles.json"):
		return KindUnfollowed
	default:
		return KindUnknown
	}
}

// ScanFile opens the ZIP at path and scans it.
func (s *Scanner) ScanFile(fpath string) ([]Fragment, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return s.Scan(f, info.Size())
}

// Scan enumerates the archive and returns all classified textual fragments.
// It fails only when the archive itself cannot be opened; individual entries
// that cannot be read or classified are dropped with a diagnostic.
func (s *Scanner) Scan(r io.ReaderAt, size int64) ([]Fragment, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	var frags []Fragment
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if binaryExts[strings.ToLower(path.Ext(f.Name))] {
			s.logger.Debug("skipping binary entry", "path", f.Name)
			continue
		}

		content, err := s.readEntry(f)
		if err != nil {
			s.logger.Warn("unreadable archive entry dropped", "path", f.Name, "error", err)
			continue
		}

		kind := Classify(f.Name)
		if kind == KindUnknown {
			// Some exports rename following.json; fall back to a shape probe.
			if bytes.Contains(content, []byte(`"relationships_following"`)) {
				kind = KindFollowing
			} else {
				s.logger.Debug("unclassified entry dropped", "path", f.Name)
				continue
			}
		}

		frags = append(frags, Fragment{Path: f.Name, Kind: kind, Content: content})
	}
	return frags, nil
}

func (s *Scanner) readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.cfg.MaxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.cfg.MaxEntryBytes {
		return nil, fmt.Errorf("entry exceeds %d bytes", s.cfg.MaxEntryBytes)
	}
	return data, nil
}
