package cache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2) so equal values
// always produce identical bytes.
var encMode cbor.EncMode

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("cache: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("cache: zstd decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v as CBOR and compresses it with zstd.
func Marshal(v any) ([]byte, error) {
	raw, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

// Unmarshal reverses Marshal.
func Unmarshal(data []byte, v any) error {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("zstd decompress: %w", err)
	}
	if err := cbor.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("cbor decode: %w", err)
	}
	return nil
}
