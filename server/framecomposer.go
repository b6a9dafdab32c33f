package server

// Compose serialises f into its RFC 6455 wire representation: two header
// bytes, an optional 2- or 8-byte extended length, an optional 4-byte
// mask, then the payload bytes verbatim (already masked, if a masking
// key is present). It is the exact inverse of FrameParser.Parse: for any
// valid Frame f, parsing Compose(f) reproduces f.
func (f Frame) Compose() []byte {
	out := make([]byte, 0, 2+8+4+len(f.Payload))

	out = append(out, composeByteOne(f))
	out = append(out, composeByteTwo(f)...)

	if f.MaskingKey != nil {
		mb := f.MaskingKey.ToBytes()
		out = append(out, mb[:]...)
	}

	out = append(out, f.Payload...)
	return out
}

func composeByteOne(f Frame) byte {
	var b byte
	if f.Fin {
		b |= 0x80
	}
	if f.Reserved {
		b |= 0x70
	}
	b |= f.OpCode.ToByte() & 0x0F
	return b
}

// composeByteTwo returns the mask bit plus either the literal length (for
// payloads of 125 bytes or fewer) or the 126/127 escape code followed by
// the appropriate 2- or 8-byte big-endian extended length.
func composeByteTwo(f Frame) []byte {
	n := len(f.Payload)

	maskBit := byte(0)
	if f.MaskingKey != nil {
		maskBit = 0x80
	}

	switch {
	case n <= 125:
		return []byte{maskBit | byte(n)}
	case n <= 0xFFFF:
		return []byte{
			maskBit | 126,
			byte(n >> 8),
			byte(n),
		}
	default:
		ln := uint64(n)
		return []byte{
			maskBit | 127,
			byte(ln >> 56), byte(ln >> 48), byte(ln >> 40), byte(ln >> 32),
			byte(ln >> 24), byte(ln >> 16), byte(ln >> 8), byte(ln),
		}
	}
}
