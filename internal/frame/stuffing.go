package frame

// HDLC-style byte stuffing. Any occurrence of the flag byte (0x7E) or
// the escape byte itself (0x7D) in the protected region is replaced by
// 0x7D followed by that byte XOR 0x20, so the two-byte SYNC pattern
// stays unambiguous no matter what the payload contains.

const flagByte = 0x7E
const escapeByte = 0x7D
const escapeXOR = 0x20

func byteStuff(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/8+2)
	for _, b := range data {
		if b == flagByte || b == escapeByte {
			out = append(out, escapeByte, b^escapeXOR)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// byteUnstuff reverses byteStuff. A trailing lone escape byte (no byte to
// pair with) is passed through unchanged.
func byteUnstuff(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == escapeByte && i+1 < len(data) {
			out = append(out, data[i+1]^escapeXOR)
			i++
		} else {
			out = append(out, data[i])
		}
	}
	return out
}
