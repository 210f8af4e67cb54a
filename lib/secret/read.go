// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// maxFileSize bounds key files. A hex key is 64 bytes and an armored
// age file around it is well under a kilobyte.
const maxFileSize = 64 << 10

// ReadFile reads a secret from path, or from stdin when path is "-",
// trims surrounding whitespace, and returns it in a Buffer. Empty
// secrets are an error.
func ReadFile(path string) (*Buffer, error) {
	var source io.Reader
	if path == "-" {
		source = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("secret: %w", err)
		}
		defer file.Close()
		source = file
	}
	return Read(source)
}

// Read reads a secret from r the way [ReadFile] does.
func Read(r io.Reader) (*Buffer, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFileSize+1))
	if err != nil {
		Zero(data)
		return nil, fmt.Errorf("secret: reading: %w", err)
	}
	if len(data) > maxFileSize {
		Zero(data)
		return nil, fmt.Errorf("secret: input exceeds %d bytes", maxFileSize)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret: input is empty")
	}
	buffer, err := protect(trimmed)
	Zero(data)
	return buffer, err
}
