package client

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// File is a selected file. Its content is read when a submission is sent.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// PathFile selects a file on disk. It is named by its base name.
func PathFile(path string) File {
	return File{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			// #nosec G304 - paths come from the user's own selection
			return os.Open(path)
		},
	}
}

// PathFiles selects every path in order.
func PathFiles(paths []string) []File {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		files = append(files, PathFile(p))
	}
	return files
}

// BytesFile selects in-memory content.
func BytesFile(name string, data []byte) File {
	return File{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
