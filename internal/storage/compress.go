package storage

import (
	"fmt"
	"sync"

	"github.com/tanaysd/alibi/internal/common"

	"github.com/klauspost/compress/zstd"
)

// Value header bytes, so a store written with one compression mode stays readable
// after the mode changes.
const (
	headerRaw  byte = 'r'
	headerZstd byte = 'z'
)

var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}
		return decoder
	},
}

var zstdEncoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder for pool: %v", err))
		}
		return encoder
	},
}

// encodeValue prefixes data with its header and compresses it when mode asks for it.
func encodeValue(mode string, data []byte) ([]byte, error) {
	switch mode {
	case common.CompressionNone:
		return append([]byte{headerRaw}, data...), nil
	case common.CompressionZstd, "":
		encoder := zstdEncoderPool.Get().(*zstd.Encoder)
		defer zstdEncoderPool.Put(encoder)
		return encoder.EncodeAll(data, []byte{headerZstd}), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", mode)
	}
}

// decodeValue reverses encodeValue based on the stored header.
func decodeValue(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("empty value")
	}

	switch value[0] {
	case headerRaw:
		return append([]byte(nil), value[1:]...), nil
	case headerZstd:
		decoder := zstdDecoderPool.Get().(*zstd.Decoder)
		defer zstdDecoderPool.Put(decoder)
		data, err := decoder.DecodeAll(value[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown value header %q", value[0])
	}
}
