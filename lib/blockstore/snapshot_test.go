// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockstore

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestExportImportRoundtrip(t *testing.T) {
	device, err := NewMemory(32)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	block, _ := device.Block(7)
	copy(block, "block seven")
	block, _ = device.Block(31)
	copy(block[BlockSize-4:], "tail")

	for _, compression := range []Compression{CompressionZstd, CompressionLZ4} {
		t.Run(compression.String(), func(t *testing.T) {
			var snapshot bytes.Buffer
			if err := Export(&snapshot, device, compression); err != nil {
				t.Fatalf("Export: %v", err)
			}
			if snapshot.Len() >= int(device.Size()) {
				t.Errorf("snapshot is %d bytes, expected compression below %d", snapshot.Len(), device.Size())
			}

			path := filepath.Join(t.TempDir(), "restored.img")
			blockCount, err := Import(&snapshot, path, false)
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if blockCount != 32 {
				t.Errorf("Import block count = %d, want 32", blockCount)
			}

			restored, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if !bytes.Equal(restored, device.Bytes()) {
				t.Error("restored image differs from the exported device")
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	for _, compression := range []Compression{CompressionZstd, CompressionLZ4} {
		parsed, err := ParseCompression(compression.String())
		if err != nil || parsed != compression {
			t.Errorf("ParseCompression(%q) = %v, %v", compression, parsed, err)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression accepted gzip")
	}
}

func TestImportRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.img")
	if _, err := Import(bytes.NewReader(make([]byte, BlockSize)), path, false); err == nil {
		t.Fatal("expected Import to reject an uncompressed stream")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Import created an image for an unrecognized stream")
	}
}

func TestImportRefusesExistingImage(t *testing.T) {
	device, _ := NewMemory(1)
	var snapshot bytes.Buffer
	if err := Export(&snapshot, device, CompressionZstd); err != nil {
		t.Fatalf("Export: %v", err)
	}

	path := filepath.Join(t.TempDir(), "existing.img")
	if err := os.WriteFile(path, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Import(bytes.NewReader(snapshot.Bytes()), path, false); err == nil {
		t.Fatal("expected Import to refuse an existing file")
	}
	contents, _ := os.ReadFile(path)
	if string(contents) != "keep me" {
		t.Error("existing file was modified")
	}

	if _, err := Import(bytes.NewReader(snapshot.Bytes()), path, true); err != nil {
		t.Fatalf("Import with overwrite: %v", err)
	}
}

func TestImportRejectsPartialBlock(t *testing.T) {
	var snapshot bytes.Buffer
	encoder, err := zstd.NewWriter(&snapshot)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	encoder.Write(make([]byte, BlockSize+10))
	encoder.Close()

	path := filepath.Join(t.TempDir(), "bad.img")
	if _, err := Import(&snapshot, path, false); err == nil {
		t.Fatal("expected error for a snapshot that is not a whole number of blocks")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("partial image was left behind")
	}
}

func TestImportFailureKeepsExistingImage(t *testing.T) {
	device, err := NewMemory(8)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	rand.NewChaCha8([32]byte{1}).Read(device.Bytes())
	var valid bytes.Buffer
	if err := Export(&valid, device, CompressionZstd); err != nil {
		t.Fatalf("Export: %v", err)
	}

	var partial bytes.Buffer
	encoder, err := zstd.NewWriter(&partial)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	encoder.Write(make([]byte, BlockSize+10))
	encoder.Close()

	tests := []struct {
		name     string
		snapshot []byte
	}{
		{name: "truncated", snapshot: valid.Bytes()[:valid.Len()/2]},
		{name: "partial block", snapshot: partial.Bytes()},
		{name: "unrecognized", snapshot: make([]byte, BlockSize)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			directory := t.TempDir()
			path := filepath.Join(directory, "image")
			existing := bytes.Repeat([]byte("keep"), BlockSize/4*8)
			if err := os.WriteFile(path, existing, 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			if _, err := Import(bytes.NewReader(test.snapshot), path, true); err == nil {
				t.Fatal("Import accepted a broken snapshot")
			}
			contents, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("existing image after failed import: %v", err)
			}
			if !bytes.Equal(contents, existing) {
				t.Error("failed import modified the existing image")
			}
			entries, _ := os.ReadDir(directory)
			if len(entries) != 1 {
				t.Errorf("directory holds %d entries after failed import, want only the image", len(entries))
			}
		})
	}
}

func TestImportOverwriteReplacesImage(t *testing.T) {
	device, _ := NewMemory(2)
	block, _ := device.Block(1)
	copy(block, "restored")
	var snapshot bytes.Buffer
	if err := Export(&snapshot, device, CompressionLZ4); err != nil {
		t.Fatalf("Export: %v", err)
	}

	directory := t.TempDir()
	path := filepath.Join(directory, "image")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Import(&snapshot, path, true); err != nil {
		t.Fatalf("Import: %v", err)
	}
	contents, _ := os.ReadFile(path)
	if !bytes.Equal(contents, device.Bytes()) {
		t.Error("image does not hold the snapshot")
	}
	entries, _ := os.ReadDir(directory)
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries after import, want only the image", len(entries))
	}
}
