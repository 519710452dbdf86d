// Package archive downloads FIRDS data packages and unpacks the document
// they carry. Only the first entry of a package is used.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	apperrors "firdscli/internal/errors"
	"firdscli/internal/fetch"
)

const defaultArchiveName = "package.zip"

// Resolver turns a package URL into the path of its inner document
type Resolver struct {
	client      fetch.Getter
	logger      *slog.Logger
	archiveName string
}

// Option configures a Resolver
type Option func(*Resolver)

// WithArchiveName fixes the file name of persisted archives. By default the
// last segment of the package URL is used.
func WithArchiveName(name string) Option {
	return func(r *Resolver) { r.archiveName = name }
}

// NewResolver creates a Resolver downloading through client
func NewResolver(client fetch.Getter, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		client: client,
		logger: logger.With(slog.String("component", "archive")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve downloads the package at rawURL and writes its first entry to
// destDir, returning the written path. With persist the raw archive is kept
// in destDir and the entry is read back from disk; otherwise the archive is
// only held in memory. Both modes produce the same document.
func (r *Resolver) Resolve(ctx context.Context, rawURL, destDir string, persist bool) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", apperrors.NewArchiveError(fmt.Sprintf("cannot create directory %s", destDir), err)
	}

	body, err := r.client.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if persist {
		archivePath := filepath.Join(destDir, r.nameFor(rawURL))
		if err := r.download(ctx, rawURL, body, archivePath); err != nil {
			return "", err
		}
		return r.ResolveFile(ctx, archivePath, destDir)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fetch.Classify(ctx, rawURL, err)
	}
	r.logger.InfoContext(ctx, "archive_downloaded",
		slog.String("url", rawURL),
		slog.Int64("size_bytes", int64(len(data))),
		slog.Float64("size_mb", float64(len(data))/1024/1024),
		slog.Bool("persisted", false))

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperrors.NewArchiveError(fmt.Sprintf("cannot read archive from %s", rawURL), err)
	}
	return r.extractFirst(ctx, zr, destDir)
}

// ResolveFile writes the first entry of the archive at archivePath to
// destDir and returns the written path
func (r *Resolver) ResolveFile(ctx context.Context, archivePath, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", apperrors.NewArchiveError(fmt.Sprintf("cannot create directory %s", destDir), err)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", apperrors.NewArchiveError(fmt.Sprintf("cannot read archive %s", archivePath), err)
	}
	defer zr.Close()

	return r.extractFirst(ctx, &zr.Reader, destDir)
}

func (r *Resolver) download(ctx context.Context, rawURL string, body io.Reader, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return apperrors.NewArchiveError(fmt.Sprintf("cannot create %s", dest), err)
	}
	defer out.Close()

	written, err := io.Copy(out, body)
	if err != nil {
		r.logger.ErrorContext(ctx, "archive_download_failed",
			slog.String("url", rawURL),
			slog.String("path", dest),
			slog.Int64("bytes_written", written),
			slog.String("error", err.Error()))
		return fetch.Classify(ctx, rawURL, err)
	}
	if err := out.Close(); err != nil {
		return apperrors.NewArchiveError(fmt.Sprintf("cannot write %s", dest), err)
	}

	r.logger.InfoContext(ctx, "archive_downloaded",
		slog.String("url", rawURL),
		slog.String("file", filepath.Base(dest)),
		slog.Int64("size_bytes", written),
		slog.Float64("size_mb", float64(written)/1024/1024),
		slog.Bool("persisted", true))
	return nil
}

// extractFirst writes the first central directory entry under its base name
func (r *Resolver) extractFirst(ctx context.Context, zr *zip.Reader, destDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.NewCancelledError("archive extraction cancelled", err)
	}
	if len(zr.File) == 0 {
		return "", apperrors.NewArchiveError("archive has no entries", nil)
	}

	entry := zr.File[0]
	name := entryBaseName(entry.Name)
	if entry.FileInfo().IsDir() || name == "" {
		return "", apperrors.NewArchiveError(fmt.Sprintf("first archive entry %q is not a file", entry.Name), nil)
	}

	src, err := entry.Open()
	if err != nil {
		return "", apperrors.NewArchiveError(fmt.Sprintf("cannot open archive entry %s", entry.Name), err)
	}
	defer src.Close()

	dest := filepath.Join(destDir, name)
	out, err := os.Create(dest)
	if err != nil {
		return "", apperrors.NewArchiveError(fmt.Sprintf("cannot create %s", dest), err)
	}
	defer out.Close()

	written, err := io.Copy(out, src)
	if err != nil {
		return "", apperrors.NewArchiveError(fmt.Sprintf("cannot decompress archive entry %s", entry.Name), err)
	}
	if err := out.Close(); err != nil {
		return "", apperrors.NewArchiveError(fmt.Sprintf("cannot write %s", dest), err)
	}

	r.logger.InfoContext(ctx, "document_extracted",
		slog.String("entry", entry.Name),
		slog.String("path", dest),
		slog.Int("entries", len(zr.File)),
		slog.Int64("size_bytes", written),
		slog.Uint64("compressed_bytes", entry.CompressedSize64))

	return dest, nil
}

func (r *Resolver) nameFor(rawURL string) string {
	if r.archiveName != "" {
		return r.archiveName
	}
	if u, err := url.Parse(rawURL); err == nil {
		if name := path.Base(u.Path); name != "." && name != "/" {
			return name
		}
	}
	return defaultArchiveName
}

// entryBaseName strips directories from an entry name, accepting either
// separator
func entryBaseName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimSuffix(name, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "." || name == ".." {
		return ""
	}
	return name
}
