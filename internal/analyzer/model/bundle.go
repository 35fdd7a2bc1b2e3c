package model

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	errx "github.com/savant-model-analyzer/server/internal/core/error"
)

const (
	KeyModel            = "model"
	KeyXTest            = "X_test"
	KeyYTest            = "y_test"
	KeyXTestTransformed = "X_test_transformed"
)

// Bundle is a fitted model shipped together with its evaluation data.
type Bundle struct {
	Model            *Ensemble `json:"model"`
	XTest            Frame     `json:"X_test"`
	YTest            Labels    `json:"y_test"`
	XTestTransformed Frame     `json:"X_test_transformed"`
}

var gzipMagic = []byte{0x1f, 0x8b}

// DecodeBundle reads a JSON bundle, gunzipping it first when it starts with
// the gzip magic bytes.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(2); err == nil && bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, errx.Deserialization(err)
		}
		defer zr.Close()
		r = zr
	} else {
		r = br
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errx.Deserialization(err)
	}
	for _, key := range []string{KeyModel, KeyXTest, KeyYTest} {
		if v, ok := raw[key]; !ok || isNull(v) {
			return nil, errx.MissingArtifact(key)
		}
	}

	var b Bundle
	if err := json.Unmarshal(raw[KeyModel], &b.Model); err != nil {
		return nil, errx.Deserialization(fmt.Errorf("%s: %w", KeyModel, err))
	}
	if err := json.Unmarshal(raw[KeyXTest], &b.XTest); err != nil {
		return nil, errx.Deserialization(fmt.Errorf("%s: %w", KeyXTest, err))
	}
	if err := json.Unmarshal(raw[KeyYTest], &b.YTest); err != nil {
		return nil, errx.Deserialization(fmt.Errorf("%s: %w", KeyYTest, err))
	}
	if v, ok := raw[KeyXTestTransformed]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &b.XTestTransformed); err != nil {
			return nil, errx.Deserialization(fmt.Errorf("%s: %w", KeyXTestTransformed, err))
		}
	} else {
		b.XTestTransformed = b.XTest
	}

	if err := b.validate(); err != nil {
		return nil, errx.Deserialization(err)
	}
	return &b, nil
}

func (b *Bundle) validate() error {
	if err := b.XTest.Validate(); err != nil {
		return fmt.Errorf("%s: %w", KeyXTest, err)
	}
	if err := b.XTestTransformed.Validate(); err != nil {
		return fmt.Errorf("%s: %w", KeyXTestTransformed, err)
	}
	rows, cols := b.XTestTransformed.Shape()
	if len(b.Model.Features) == 0 {
		b.Model.Features = append([]string(nil), b.XTestTransformed.Columns...)
	}
	if len(b.Model.Features) != cols {
		return fmt.Errorf("model expects %d features, %s has %d columns", len(b.Model.Features), KeyXTestTransformed, cols)
	}
	if err := b.Model.Validate(); err != nil {
		return fmt.Errorf("%s: %w", KeyModel, err)
	}
	if xr, _ := b.XTest.Shape(); xr != rows {
		return fmt.Errorf("%s has %d rows, %s has %d", KeyXTest, xr, KeyXTestTransformed, rows)
	}
	if len(b.YTest) != rows {
		return fmt.Errorf("%s has %d labels for %d rows", KeyYTest, len(b.YTest), rows)
	}
	return nil
}

// EncodeBundle writes b as JSON, gzip-compressed when compress is set.
func EncodeBundle(w io.Writer, b *Bundle, compress bool) error {
	if !compress {
		return json.NewEncoder(w).Encode(b)
	}
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(b); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
