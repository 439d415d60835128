// Package download fetches prefix database files with conditional requests and
// keeps a metadata sidecar so unchanged files are not replaced.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const MetadataSuffix = ".status.json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status indicates whether the remote content changed.
type Status string

const (
	StatusUpdated     Status = "updated"
	StatusNotModified Status = "not_modified"
	StatusSameContent Status = "same_content"
)

// Metadata tracks the last successful download or check.
type Metadata struct {
	URL          string    `json:"url,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at,omitempty"`
	CheckedAt    time.Time `json:"checked_at,omitempty"`
	SizeBytes    int64     `json:"size_bytes,omitempty"`
	SHA256       string    `json:"sha256,omitempty"`
	UpToDate     bool      `json:"up_to_date,omitempty"`
	ValidatedAt  time.Time `json:"validated_at,omitempty"`
}

// Request configures one download.
type Request struct {
	URL          string
	Destination  string
	Timeout      time.Duration
	Force        bool
	MetadataPath string
	UserAgent    string
	// Validate, when set, is run against the downloaded temp file before it
	// replaces Destination. An error leaves the old file in place.
	Validate func(path string) error
	Client   *http.Client
	Clock    clockwork.Clock
	Logger   *zap.Logger
}

// Result summarizes the download outcome.
type Result struct {
	Status Status
	Meta   Metadata
	Bytes  int64
}

// MetadataPath returns the default metadata sidecar path for a destination.
func MetadataPath(dest string) string {
	if strings.TrimSpace(dest) == "" {
		return ""
	}
	return dest + MetadataSuffix
}

// Download fetches req.URL into req.Destination.
// Purpose: Refresh a reference file (cty.dat, cty.plist) without clobbering a
// good copy.
// Key aspects: Sends If-None-Match/If-Modified-Since when a previous copy
// exists and compares SHA-256 digests, leaving the file untouched if nothing
// changed. The body lands in a temp file, passes req.Validate, then replaces
// the destination atomically; metadata is written to the sidecar afterwards.
// Upstream: the fetch command.
// Downstream: net/http, Metadata sidecar.
func Download(ctx context.Context, req Request) (Result, error) {
	var result Result
	url := strings.TrimSpace(req.URL)
	dest := strings.TrimSpace(req.Destination)
	if url == "" {
		return result, errors.New("download: URL is empty")
	}
	if dest == "" {
		return result, errors.New("download: destination is empty")
	}
	logger := req.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := req.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger = logger.With(zap.String("url", url), zap.String("dest", dest))

	metaPath := strings.TrimSpace(req.MetadataPath)
	if metaPath == "" {
		metaPath = MetadataPath(dest)
	}

	destInfo, err := os.Stat(dest)
	destExists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("download: stat destination: %w", err)
	}

	prevMeta := ReadMetadata(metaPath)
	if prevMeta == nil && destExists {
		prevMeta = &Metadata{
			LastModified: destInfo.ModTime().UTC().Format(http.TimeFormat),
			SizeBytes:    destInfo.Size(),
		}
	}

	force := req.Force || !destExists

	client := req.Client
	if client == nil {
		client = &http.Client{}
	}
	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return result, fmt.Errorf("download: build request: %w", err)
	}
	if !force && prevMeta != nil {
		if prevMeta.ETag != "" {
			httpReq.Header.Set("If-None-Match", prevMeta.ETag)
		}
		if prevMeta.LastModified != "" {
			httpReq.Header.Set("If-Modified-Since", prevMeta.LastModified)
		}
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("download: fetch failed: %w", err)
	}
	defer resp.Body.Close()

	now := clock.Now().UTC()
	if resp.StatusCode == http.StatusNotModified {
		result.Status = StatusNotModified
		meta := mergeMetadata(prevMeta, url, resp, now, "")
		meta.UpToDate = true
		writeMetadataLogged(logger, metaPath, meta)
		result.Meta = meta
		logger.Debug("download not modified")
		return result, nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return result, fmt.Errorf("download: fetch failed: status %s", resp.Status)
	}

	if err := ensureParentDir(dest); err != nil {
		return result, err
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return result, fmt.Errorf("download: create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmpFile, hasher), resp.Body)
	if err != nil {
		tmpFile.Close()
		return result, fmt.Errorf("download: copy body: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return result, fmt.Errorf("download: finalize temp file: %w", err)
	}
	if written <= 0 {
		return result, errors.New("download: empty response body")
	}

	hashHex := hex.EncodeToString(hasher.Sum(nil))
	result.Bytes = written

	sameContent := prevMeta != nil && destExists && prevMeta.SHA256 != "" && prevMeta.SHA256 == hashHex
	if sameContent && !force {
		result.Status = StatusSameContent
		meta := mergeMetadata(prevMeta, url, resp, now, hashHex)
		meta.UpToDate = true
		writeMetadataLogged(logger, metaPath, meta)
		result.Meta = meta
		logger.Debug("download content unchanged", zap.String("sha256", hashHex))
		return result, nil
	}

	meta := mergeMetadata(prevMeta, url, resp, now, hashHex)
	if req.Validate != nil {
		if err := req.Validate(tmpName); err != nil {
			return result, fmt.Errorf("download: validate: %w", err)
		}
		meta.ValidatedAt = now
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return result, fmt.Errorf("download: replace file: %w", err)
	}

	result.Status = StatusUpdated
	meta.DownloadedAt = now
	meta.SizeBytes = written
	meta.UpToDate = true
	writeMetadataLogged(logger, metaPath, meta)
	result.Meta = meta
	logger.Info("downloaded", zap.Int64("bytes", written), zap.String("sha256", hashHex))
	return result, nil
}

// ReadMetadata reads a metadata sidecar. A missing or unparsable file yields nil.
func ReadMetadata(path string) *Metadata {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil
	}
	return &meta
}

// WriteMetadata persists metadata as indented JSON.
func WriteMetadata(path string, meta Metadata) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("download: metadata path is empty")
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeMetadataLogged(logger *zap.Logger, path string, meta Metadata) {
	if err := WriteMetadata(path, meta); err != nil {
		logger.Warn("unable to write download metadata", zap.String("path", path), zap.Error(err))
	}
}

func mergeMetadata(prev *Metadata, url string, resp *http.Response, now time.Time, hash string) Metadata {
	meta := Metadata{}
	if prev != nil {
		meta = *prev
	}
	meta.URL = url
	meta.CheckedAt = now
	if resp != nil {
		if etag := strings.TrimSpace(resp.Header.Get("ETag")); etag != "" {
			meta.ETag = etag
		}
		if last := strings.TrimSpace(resp.Header.Get("Last-Modified")); last != "" {
			meta.LastModified = last
		}
	}
	if hash != "" {
		meta.SHA256 = hash
	}
	return meta
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("download: create directory: %w", err)
	}
	return nil
}
