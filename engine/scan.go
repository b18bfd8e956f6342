package engine

// wasm binary framing constants.
const (
	wasmMagic   = 0x6d736100 // "\0asm", little-endian
	wasmVersion = 1
)

// ScanModule walks the header and section framing of a wasm binary without
// decoding section contents. It reports bad framing as ErrModuleMalformed,
// truncation as ErrModuleUnderrun and unsupported versions as
// ErrIncompatibleVersion; nil means the outer structure is sound enough to
// hand to compilation.
func ScanModule(data []byte) *Status {
	if len(data) < 8 {
		return ErrModuleUnderrun
	}
	magic := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	if magic != wasmMagic {
		return ErrModuleMalformed
	}
	version := uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24
	if version != wasmVersion {
		return ErrIncompatibleVersion
	}

	rest := data[8:]
	for len(rest) > 0 {
		rest = rest[1:] // section id; validity is left to compilation
		size, n := uleb128(rest)
		switch {
		case n == 0:
			return ErrModuleUnderrun
		case n < 0:
			return ErrModuleMalformed
		}
		rest = rest[n:]
		if uint64(len(rest)) < uint64(size) {
			return ErrModuleUnderrun
		}
		rest = rest[size:]
	}
	return nil
}

// uleb128 decodes an unsigned LEB128 value from the front of b, returning
// the value and the number of bytes consumed. n == 0 means the input was
// truncated, n < 0 that the encoding overflows 32 bits.
func uleb128(b []byte) (value uint32, n int) {
	var shift uint
	for i := 0; i < len(b); i++ {
		c := b[i]
		value |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			return value, i + 1
		}
		shift += 7
		if shift >= 35 {
			return 0, -1
		}
	}
	return 0, 0
}
