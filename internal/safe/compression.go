// internal/safe/compression.go
package safe

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures compression behavior
type CompressionOptions struct {
	// Minimum envelope size in bytes before compressing
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 1024,
		Level:   2,
	}
}

// compressionManager pools zstd encoders and decoders across objects.
type compressionManager struct {
	opts CompressionOptions

	encoders sync.Pool
	decoders sync.Pool
}

func newCompressionManager(opts CompressionOptions) (*compressionManager, error) {
	if opts.Level == 0 {
		opts.Level = DefaultCompressionOptions().Level
	}
	level := zstd.EncoderLevelFromZstd(opts.Level)

	// Fail early on bad options instead of inside a pool constructor
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	cm := &compressionManager{opts: opts}
	cm.encoders.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
		return enc
	}
	cm.decoders.New = func() interface{} {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}
	cm.encoders.Put(enc)
	cm.decoders.Put(dec)

	return cm, nil
}

func (cm *compressionManager) shouldCompress(size int) bool {
	return cm.opts.MinSize >= 0 && size >= cm.opts.MinSize
}

// compress returns data zstd-framed when it is large enough to be worth it,
// and reports whether it did.
func (cm *compressionManager) compress(data []byte) ([]byte, bool) {
	if !cm.shouldCompress(len(data)) {
		return data, false
	}

	enc := cm.encoders.Get().(*zstd.Encoder)
	defer cm.encoders.Put(enc)

	out := enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	if len(out) >= len(data) {
		return data, false
	}
	return out, true
}

// decompress accepts both framed and plain data.
func (cm *compressionManager) decompress(data []byte) ([]byte, error) {
	if !isCompressed(data) {
		return data, nil
	}

	dec := cm.decoders.Get().(*zstd.Decoder)
	defer cm.decoders.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

// Object envelopes start with a kind byte (1 or 2), so they never begin with
// the zstd magic on their own.
func isCompressed(data []byte) bool {
	return len(data) > len(zstdMagic) && bytes.Equal(data[:len(zstdMagic)], zstdMagic)
}

func (cm *compressionManager) close() {
	if enc, ok := cm.encoders.Get().(*zstd.Encoder); ok && enc != nil {
		enc.Close()
	}
	if dec, ok := cm.decoders.Get().(*zstd.Decoder); ok && dec != nil {
		dec.Close()
	}
}
