package client

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Source is the content to upload. Parts are read concurrently through
// ReaderAt, so the file is never loaded into memory as a whole.
type Source struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.ReaderAt
}

// File is a Source backed by an open file.
type File struct {
	Source
	f *os.File
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}

// OpenFile opens path for upload and sniffs its content type.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	contentType, err := DetectContentType(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &File{
		Source: Source{
			Name:        filepath.Base(path),
			ContentType: contentType,
			Size:        info.Size(),
			Reader:      f,
		},
		f: f,
	}, nil
}

// NewBytesSource wraps an in-memory payload.
func NewBytesSource(name, contentType string, data []byte) Source {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	return Source{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Reader:      bytes.NewReader(data),
	}
}

// DetectContentType sniffs the MIME type from the start of r.
func DetectContentType(r io.ReaderAt) (string, error) {
	header := make([]byte, 3072)
	n, err := r.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file header: %w", err)
	}
	return mimetype.Detect(header[:n]).String(), nil
}
