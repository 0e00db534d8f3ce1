// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression is the outer encoding of an artifact file.
type Compression string

const (
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionNone Compression = "none"
)

// ParseCompression accepts gzip, zstd or none; empty selects gzip.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CompressionGzip, nil
	case CompressionGzip, CompressionZstd, CompressionNone:
		return c, nil
	default:
		return "", fmt.Errorf("unknown compression %q (want gzip, zstd or none)", s)
	}
}

// Ext returns the file suffix appended after ".json".
func (c Compression) Ext() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// compressionForName infers the expected compression from a file name.
func compressionForName(name string) Compression {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(name, ".zst"):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

func sniff(b []byte) Compression {
	switch {
	case bytes.HasPrefix(b, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(b, zstdMagic):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// Encode renders art as indented JSON and compresses it.
func Encode(art *Artifact, c Compression) ([]byte, error) {
	raw, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionGzip, "":
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer func() { _ = enc.Close() }()
		return enc.EncodeAll(raw, nil), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}

// Decode parses an artifact, inflating gzip or zstd input when its magic
// bytes are present.
func Decode(b []byte) (*Artifact, error) {
	return decodeExpecting(b, CompressionNone)
}

// decodeExpecting is Decode for callers that know the input should be
// compressed (typically from the file suffix). Such input that is neither
// compressed nor plain JSON fails with ErrDecompression.
func decodeExpecting(b []byte, expected Compression) (*Artifact, error) {
	c := sniff(b)
	if c == CompressionNone && expected != CompressionNone && !looksLikeJSON(b) {
		c = expected
	}
	raw, err := decompress(b, c)
	if err != nil {
		return nil, err
	}
	return parseArtifact(raw)
}

func decompress(b []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
		}
		defer func() { _ = zr.Close() }()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
		}
		return out, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(b, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
		}
		return out, nil
	default:
		return b, nil
	}
}

func looksLikeJSON(b []byte) bool {
	t := bytes.TrimLeft(b, " \t\r\n")
	return len(t) > 0 && (t[0] == '{' || t[0] == '[')
}

// parseArtifact decodes JSON text. Invalid JSON is ErrMalformed; sections
// that are absent or have the wrong shape stay nil for the Validator.
func parseArtifact(raw []byte) (*Artifact, error) {
	var doc json.RawMessage
	if err := decodeNumbers(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	art := &Artifact{}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		// Valid JSON, but not an object: every section is missing.
		return art, nil
	}

	if section, ok := present(top, "metadata"); ok {
		var m Metadata
		if err := json.Unmarshal(section, &m); err == nil {
			art.Metadata = &m
		}
	}
	if section, ok := present(top, "data"); ok {
		var data map[string][]Snapshot
		if err := decodeNumbers(section, &data); err == nil && data != nil {
			art.Data = data
		}
	}
	if section, ok := present(top, "statistics"); ok {
		var s Statistics
		if err := json.Unmarshal(section, &s); err == nil {
			art.Statistics = &s
		}
	}
	return art, nil
}

func present(top map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	section, ok := top[key]
	if !ok || bytes.Equal(bytes.TrimSpace(section), []byte("null")) {
		return nil, false
	}
	return section, true
}

// decodeNumbers unmarshals one JSON value keeping numbers as json.Number and
// rejecting trailing content.
func decodeNumbers(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected content after JSON value")
	}
	return nil
}
