//go:build !linux && !darwin

package mmap

import (
	"os"

	"github.com/ajitpratap0/dremel/pkg/errors"
)

const supported = false

func mapFile(*os.File, int) ([]byte, error) {
	return nil, errors.New(errors.ErrorTypeCapability, "mmap is not supported on this platform")
}

func unmapFile([]byte) error { return nil }
