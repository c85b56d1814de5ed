package escpos

// reverseBits flips the bit order within a byte.
func reverseBits(b byte) byte {
	b = (b&0xF0)>>4 | (b&0x0F)<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}

// transformBitmap applies the optional pixel inversion and bit-order fix in
// place. The two transforms are independent; inversion runs first.
func transformBitmap(data []byte, invert bool, order BitOrder) []byte {
	if invert {
		for i := range data {
			data[i] = ^data[i]
		}
	}
	if order == LSBFirst {
		for i := range data {
			data[i] = reverseBits(data[i])
		}
	}
	return data
}
