package cache

import (
	"bytes"
	"compress/zlib"
	"encoding/gob"
	"fmt"
	"io"

	errx "github.com/savant-model-analyzer/server/internal/core/error"
)

func encode(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, fmt.Errorf("encode %T: %w", data, err)
	}
	return buf.Bytes(), nil
}

func decode(b []byte, out any) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(out); err != nil {
		return errx.Deserialization(fmt.Errorf("decode into %T: %w", out, err))
	}
	return nil
}

// compressionLevel matches the level the file layout has always used.
const compressionLevel = 3

func compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, compressionLevel)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(r io.Reader) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, errx.Deserialization(err)
	}
	defer zr.Close()

	b, err := io.ReadAll(zr)
	if err != nil {
		return nil, errx.Deserialization(err)
	}
	return b, nil
}
