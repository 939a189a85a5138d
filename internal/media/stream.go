/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidRange marks a Range header the server cannot parse.
	ErrInvalidRange = errors.New("invalid range")
	// ErrUnsatisfiableRange marks a syntactically valid range outside the file.
	ErrUnsatisfiableRange = errors.New("unsatisfiable range")
	// ErrOutsideRoot marks a storage path escaping the media root.
	ErrOutsideRoot = errors.New("path outside media root")
)

// byteRange is a resolved half-open [Start, Start+Length) slice of a file.
type byteRange struct {
	Start  int64
	Length int64
}

// parseRange resolves a single-range Range header against a file size.
// Supported forms: bytes=a-b, bytes=a-, bytes=-k. Multi-range requests are
// rejected.
func parseRange(header string, size int64) (*byteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil, ErrInvalidRange
	}
	spec := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if spec == "" || strings.Contains(spec, ",") {
		return nil, ErrInvalidRange
	}

	dash := strings.Index(spec, "-")
	if dash < 0 {
		return nil, ErrInvalidRange
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	if startStr == "" {
		// Suffix form: last k bytes.
		k, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || k <= 0 {
			return nil, ErrInvalidRange
		}
		if k > size {
			k = size
		}
		return &byteRange{Start: size - k, Length: k}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, ErrInvalidRange
	}
	if start >= size {
		return nil, ErrUnsatisfiableRange
	}

	if endStr == "" {
		return &byteRange{Start: start, Length: size - start}, nil
	}

	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return nil, ErrInvalidRange
	}
	if end >= size {
		end = size - 1
	}
	return &byteRange{Start: start, Length: end - start + 1}, nil
}

// Streamer serves asset files from the media root.
type Streamer struct {
	root   string
	logger zerolog.Logger
}

// NewStreamer creates a streamer rooted at the media directory.
func NewStreamer(root string, logger zerolog.Logger) *Streamer {
	return &Streamer{
		root:   root,
		logger: logger.With().Str("component", "media").Logger(),
	}
}

// Open resolves a stored asset path under the media root and opens it.
// Relative paths join the root; absolute paths must already live under it.
func (s *Streamer) Open(storagePath string) (*os.File, int64, error) {
	path := storagePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	path = filepath.Clean(path)

	rootWithSep := filepath.Clean(s.root) + string(filepath.Separator)
	if !strings.HasPrefix(path, rootWithSep) {
		return nil, 0, ErrOutsideRoot
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Serve writes the file to the response, honoring a single Range header.
// Responses are marked uncacheable since asset access feeds retention.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, f *os.File, size int64, mime string) {
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "no-store")
	if mime != "" {
		w.Header().Set("Content-Type", mime)
	}

	header := r.Header.Get("Range")
	if header == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.CopyN(w, f, size)
		}
		return
	}

	rng, err := parseRange(header, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "invalid_range", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		s.logger.Error().Err(err).Msg("seek failed")
		http.Error(w, "internal_error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Range",
		fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.Start+rng.Length-1, size))
	w.Header().Set("Content-Length", strconv.FormatInt(rng.Length, 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		io.CopyN(w, f, rng.Length)
	}
}
