package xrefcore

import "github.com/klauspost/compress/zstd"

// maybeCompress zstd-compresses value if m is one of compressedMaps,
// trading CPU for disk footprint on the maps that dominate database
// size.
func maybeCompress(m MapName, value []byte) ([]byte, error) {
	if !compressedMaps[m] {
		return value, nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(value, nil), nil
}

// maybeDecompress reverses maybeCompress.
func maybeDecompress(m MapName, raw []byte) ([]byte, error) {
	if !compressedMaps[m] {
		return raw, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(raw, nil)
}
