// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/wasteland/lib/codec"
	"github.com/bureau-foundation/wasteland/lib/depgraph"
)

const (
	magic         = "WLGS"
	formatVersion = 1

	// maxPayload bounds the uncompressed size a header may claim.
	maxPayload = 256 << 20
)

// ErrNotSnapshot is returned by [Read] when the input does not start
// with a snapshot header.
var ErrNotSnapshot = errors.New("snapshot: not a graph snapshot")

// Header describes a snapshot file.
type Header struct {
	Version     uint8
	Compression Compression
	Size        int
}

// Write encodes snapshot to w with the requested compression, falling
// back to none when compression would not help. It returns the
// compression actually used.
func Write(w io.Writer, snapshot depgraph.Snapshot, compression Compression) (Compression, error) {
	data, err := codec.Marshal(snapshot)
	if err != nil {
		return 0, fmt.Errorf("snapshot: encoding: %w", err)
	}

	payload, err := compress(data, compression)
	if errors.Is(err, errIncompressible) {
		payload, compression = data, CompressionNone
	} else if err != nil {
		return 0, err
	}

	header := make([]byte, 0, len(magic)+2+binary.MaxVarintLen64)
	header = append(header, magic...)
	header = append(header, formatVersion, byte(compression))
	header = binary.AppendUvarint(header, uint64(len(data)))

	if _, err := w.Write(header); err != nil {
		return 0, fmt.Errorf("snapshot: writing header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return 0, fmt.Errorf("snapshot: writing payload: %w", err)
	}
	return compression, nil
}

// Read decodes a snapshot written by [Write].
func Read(r io.Reader) (depgraph.Snapshot, Header, error) {
	reader := bufio.NewReader(r)
	header, err := readHeader(reader)
	if err != nil {
		return depgraph.Snapshot{}, Header{}, err
	}

	payload, err := io.ReadAll(reader)
	if err != nil {
		return depgraph.Snapshot{}, header, fmt.Errorf("snapshot: reading payload: %w", err)
	}
	data, err := decompress(payload, header.Compression, header.Size)
	if err != nil {
		return depgraph.Snapshot{}, header, err
	}

	var snapshot depgraph.Snapshot
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return depgraph.Snapshot{}, header, fmt.Errorf("snapshot: decoding: %w", err)
	}
	return snapshot, header, nil
}

// Marshal returns the encoded snapshot as a byte slice.
func Marshal(snapshot depgraph.Snapshot, compression Compression) ([]byte, error) {
	var buffer bytes.Buffer
	if _, err := Write(&buffer, snapshot, compression); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func readHeader(reader *bufio.Reader) (Header, error) {
	prefix := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(reader, prefix); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, ErrNotSnapshot
		}
		return Header{}, fmt.Errorf("snapshot: reading header: %w", err)
	}
	if string(prefix[:len(magic)]) != magic {
		return Header{}, ErrNotSnapshot
	}

	header := Header{
		Version:     prefix[len(magic)],
		Compression: Compression(prefix[len(magic)+1]),
	}
	if header.Version != formatVersion {
		return header, fmt.Errorf("snapshot: unsupported format version %d", header.Version)
	}

	size, err := binary.ReadUvarint(reader)
	if err != nil {
		return header, fmt.Errorf("snapshot: reading size: %w", err)
	}
	if size > maxPayload {
		return header, fmt.Errorf("snapshot: claimed size %d exceeds limit %d", size, maxPayload)
	}
	header.Size = int(size)
	return header, nil
}
