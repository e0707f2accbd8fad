package blobdev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the page codec.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return 0, fmt.Errorf("blobdev: unknown compression %q", s)
}

const frameHeaderSize = 5

var errFrame = errors.New("blobdev: malformed page frame")

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// encodeFrame frames page, compressing it with c when that pays off.
func encodeFrame(page []byte, c Compression) ([]byte, error) {
	var payload []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(page)))
		n, err := lz4.CompressBlock(page, buf, nil)
		if err != nil {
			return nil, err
		}
		payload = buf[:n] // n == 0: incompressible
	case CompressionZstd:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(page, nil)
		zstdEncoderPool.Put(enc)
	}

	if len(payload) == 0 || len(payload) > len(page)*9/10 {
		c, payload = CompressionNone, page
	}
	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = byte(c)
	binary.LittleEndian.PutUint32(frame[1:], uint32(len(page)))
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

// frameSize returns the raw page length recorded in frame.
func frameSize(frame []byte) (int, error) {
	if len(frame) < frameHeaderSize {
		return 0, fmt.Errorf("%w: %d bytes", errFrame, len(frame))
	}
	return int(binary.LittleEndian.Uint32(frame[1:])), nil
}

// decodeFrame decodes frame into dst, which must have the raw page length.
func decodeFrame(frame, dst []byte) error {
	raw, err := frameSize(frame)
	if err != nil {
		return err
	}
	if raw != len(dst) {
		return fmt.Errorf("%w: page of %d bytes, want %d", errFrame, raw, len(dst))
	}
	payload := frame[frameHeaderSize:]

	switch Compression(frame[0]) {
	case CompressionNone:
		if len(payload) != raw {
			return fmt.Errorf("%w: raw payload of %d bytes", errFrame, len(payload))
		}
		copy(dst, payload)
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return fmt.Errorf("%w: %v", errFrame, err)
		}
		if n != raw {
			return fmt.Errorf("%w: decompressed %d bytes, want %d", errFrame, n, raw)
		}
	case CompressionZstd:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, dst[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return fmt.Errorf("%w: %v", errFrame, err)
		}
		if len(out) != raw {
			return fmt.Errorf("%w: decompressed %d bytes, want %d", errFrame, len(out), raw)
		}
	default:
		return fmt.Errorf("%w: codec %d", errFrame, frame[0])
	}
	return nil
}
