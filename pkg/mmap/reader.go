// Package mmap maps input files read-only so the Parquet reader can seek
// over them without copying.
package mmap

import (
	"bytes"
	"os"
	"sync"

	"github.com/ajitpratap0/dremel/pkg/errors"
)

// File is a read-only view of a file's bytes. It implements io.ReaderAt
// and io.Seeker through an embedded bytes.Reader.
type File struct {
	*bytes.Reader

	data   []byte
	mapped bool
	once   sync.Once
	err    error
}

// Open maps path into memory. Empty files and platforms without mmap fall
// back to an in-memory copy.
func Open(path string) (*File, error) {
	f, err := os.Open(path) // #nosec G304 - caller supplies the input file
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot open file").WithDetail("path", path)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot stat file").WithDetail("path", path)
	}
	size := stat.Size()
	if size == 0 || !supported {
		data, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot read file").WithDetail("path", path)
		}
		return &File{Reader: bytes.NewReader(data), data: data}, nil
	}

	data, err := mapFile(f, int(size))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot map file").WithDetail("path", path)
	}
	return &File{Reader: bytes.NewReader(data), data: data, mapped: true}, nil
}

// Bytes returns the mapped contents. They are invalid after Close.
func (f *File) Bytes() []byte { return f.data }

// Mapped reports whether the contents are backed by a memory mapping.
func (f *File) Mapped() bool { return f.mapped }

// Close unmaps the file. It is safe to call more than once.
func (f *File) Close() error {
	f.once.Do(func() {
		if f.mapped {
			f.err = unmapFile(f.data)
		}
		f.data = nil
		f.Reader = bytes.NewReader(nil)
	})
	return f.err
}
