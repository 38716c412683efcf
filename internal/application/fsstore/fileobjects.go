package fsstore

import (
	"context"
	"fmt"

	domain "github.com/danbao/testring-sub000/internal/domain/fsstore"
)

// FileIO is the narrow filesystem port the Text/Binary/Screenshot file
// objects write through. The caller supplies the implementation; this
// module contains none.
type FileIO interface {
	WriteFile(fullPath string, data []byte) error
	ReadFile(fullPath string) ([]byte, error)
}

// TextFile is a convenience wrapper: acquire a Lock, write or read a string,
// release. Every call is a complete Lock-write-release (or Access-read-release)
// cycle rather than a held-open handle, matching how a worker typically
// wants "write this one artifact and move on."
type TextFile struct {
	client *Client
	io     FileIO
	meta   domain.Meta
}

// NewTextFile builds a TextFile bound to meta (Ext/FileName/Type/UniqPolicy
// decide the generated path).
func NewTextFile(client *Client, io FileIO, meta domain.Meta) *TextFile {
	return &TextFile{client: client, io: io, meta: meta}
}

// Write locks the slot, writes content, and releases.
func (f *TextFile) Write(ctx context.Context, content string) (string, error) {
	h, err := f.client.Lock(ctx, f.meta)
	if err != nil {
		return "", err
	}
	defer h.Release(ctx)

	if err := f.io.WriteFile(h.FullPath, []byte(content)); err != nil {
		return "", fmt.Errorf("fsstore textfile: write %s: %w", h.FullPath, err)
	}
	return h.FullPath, nil
}

// Read acquires shared access, reads content, and releases.
func (f *TextFile) Read(ctx context.Context) (string, error) {
	h, err := f.client.Access(ctx, f.meta)
	if err != nil {
		return "", err
	}
	defer h.Release(ctx)

	data, err := f.io.ReadFile(h.FullPath)
	if err != nil {
		return "", fmt.Errorf("fsstore textfile: read %s: %w", h.FullPath, err)
	}
	return string(data), nil
}

// BinaryFile is TextFile's counterpart for raw bytes (downloads, archives).
type BinaryFile struct {
	client *Client
	io     FileIO
	meta   domain.Meta
}

// NewBinaryFile builds a BinaryFile bound to meta.
func NewBinaryFile(client *Client, io FileIO, meta domain.Meta) *BinaryFile {
	return &BinaryFile{client: client, io: io, meta: meta}
}

// Write locks the slot, writes data, and releases.
func (f *BinaryFile) Write(ctx context.Context, data []byte) (string, error) {
	h, err := f.client.Lock(ctx, f.meta)
	if err != nil {
		return "", err
	}
	defer h.Release(ctx)

	if err := f.io.WriteFile(h.FullPath, data); err != nil {
		return "", fmt.Errorf("fsstore binaryfile: write %s: %w", h.FullPath, err)
	}
	return h.FullPath, nil
}

// Read acquires shared access, reads data, and releases.
func (f *BinaryFile) Read(ctx context.Context) ([]byte, error) {
	h, err := f.client.Access(ctx, f.meta)
	if err != nil {
		return nil, err
	}
	defer h.Release(ctx)

	data, err := f.io.ReadFile(h.FullPath)
	if err != nil {
		return nil, fmt.Errorf("fsstore binaryfile: read %s: %w", h.FullPath, err)
	}
	return data, nil
}

// ScreenshotFile is BinaryFile specialized to screenshot artifacts: its Meta
// always carries Type "screenshot" and Ext "png" unless the caller overrides
// them, so callers only need to supply a FileName or rely on the generated
// name.
type ScreenshotFile struct {
	*BinaryFile
}

// NewScreenshotFile builds a ScreenshotFile, defaulting Meta.Type to
// "screenshot" and Meta.Ext to "png" when unset.
func NewScreenshotFile(client *Client, io FileIO, meta domain.Meta) *ScreenshotFile {
	if meta.Type == "" {
		meta.Type = "screenshot"
	}
	if meta.Ext == "" {
		meta.Ext = "png"
	}
	return &ScreenshotFile{BinaryFile: NewBinaryFile(client, io, meta)}
}
