// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/bureau-foundation/wasteland/lib/depgraph"
	"github.com/bureau-foundation/wasteland/lib/schema"
)

// chainSnapshot returns a snapshot of n tasks, each blocked by the
// previous one. Titles repeat, so the encoding compresses well.
func chainSnapshot(n int) depgraph.Snapshot {
	tasks := make([]schema.Task, n)
	for i := range tasks {
		tasks[i] = schema.Task{
			ID:        fmt.Sprintf("wl-%04x", i),
			EventID:   fmt.Sprintf("%064x", i),
			Author:    "8f1c0e6a4b2d",
			CreatedAt: int64(1700000000 + i),
			Title:     "migrate the relay configuration to the new format",
			Status:    schema.StatusOpen,
			Priority:  schema.PriorityNormal,
		}
		if i > 0 {
			tasks[i].BlockedBy = []string{tasks[i-1].EventID}
		}
	}
	return depgraph.Build(tasks).Snapshot()
}

func TestWriteReadRoundtrip(t *testing.T) {
	original := chainSnapshot(40)
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			var buffer bytes.Buffer
			used, err := Write(&buffer, original, compression)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if used != compression {
				t.Errorf("Write used %s, want %s", used, compression)
			}

			decoded, header, err := Read(&buffer)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if header.Compression != compression {
				t.Errorf("header compression = %s, want %s", header.Compression, compression)
			}
			if !reflect.DeepEqual(decoded, original) {
				t.Errorf("decoded snapshot differs from original")
			}
		})
	}
}

func TestCompressionShrinksRepetitiveGraphs(t *testing.T) {
	original := chainSnapshot(40)
	plain, err := Marshal(original, CompressionNone)
	if err != nil {
		t.Fatal(err)
	}
	compressed, err := Marshal(original, CompressionZstd)
	if err != nil {
		t.Fatal(err)
	}
	if len(compressed) >= len(plain) {
		t.Errorf("zstd snapshot is %d bytes, plain is %d", len(compressed), len(plain))
	}
}

func TestIncompressibleFallsBackToNone(t *testing.T) {
	empty := depgraph.Build(nil).Snapshot()
	for _, compression := range []Compression{CompressionLZ4, CompressionZstd} {
		var buffer bytes.Buffer
		used, err := Write(&buffer, empty, compression)
		if err != nil {
			t.Fatalf("Write(%s): %v", compression, err)
		}
		if used != CompressionNone {
			t.Errorf("Write(%s) used %s, want none for a tiny payload", compression, used)
		}
		decoded, _, err := Read(&buffer)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if len(decoded.Nodes) != 0 || decoded.Version != depgraph.SnapshotVersion {
			t.Errorf("decoded = %+v, want an empty version %d snapshot", decoded, depgraph.SnapshotVersion)
		}
	}
}

func TestDeterministicOutput(t *testing.T) {
	first, err := Marshal(chainSnapshot(10), CompressionNone)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Marshal(chainSnapshot(10), CompressionNone)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("two exports of the same graph differ")
	}
}

func TestReadRejectsForeignInput(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"short", []byte("WL")},
		{"wrong magic", []byte("JSON{}\x00")},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := Read(bytes.NewReader(test.input))
			if !errors.Is(err, ErrNotSnapshot) {
				t.Errorf("Read error = %v, want ErrNotSnapshot", err)
			}
		})
	}
}

func TestReadRejectsBadHeaders(t *testing.T) {
	valid, err := Marshal(chainSnapshot(3), CompressionNone)
	if err != nil {
		t.Fatal(err)
	}

	wrongVersion := bytes.Clone(valid)
	wrongVersion[len(magic)] = 9
	if _, _, err := Read(bytes.NewReader(wrongVersion)); err == nil {
		t.Error("Read accepted an unknown format version")
	}

	truncated := valid[:len(valid)-5]
	if _, _, err := Read(bytes.NewReader(truncated)); err == nil {
		t.Error("Read accepted a truncated payload")
	}

	unknownCompression := bytes.Clone(valid)
	unknownCompression[len(magic)+1] = 7
	if _, _, err := Read(bytes.NewReader(unknownCompression)); err == nil {
		t.Error("Read accepted an unknown compression")
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		compression, err := ParseCompression(name)
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", name, err)
		}
		if compression.String() != name {
			t.Errorf("ParseCompression(%q).String() = %q", name, compression.String())
		}
	}
	if compression, err := ParseCompression(""); err != nil || compression != CompressionNone {
		t.Errorf("ParseCompression(\"\") = (%s, %v), want none", compression, err)
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression(gzip) succeeded")
	}
}
