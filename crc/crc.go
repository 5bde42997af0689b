// Package crc implements CRC-8 with polynomial 0x93, used as radio frame trailer.
package crc

const Poly93 byte = 0x93

var table93 = makeTable(Poly93)

func makeTable(poly byte) (t [256]byte) {
	for i := 0; i < 256; i++ {
		t[i] = reference(poly, 0, byte(i))
	}
	return
}

func reference(poly, crc, data byte) byte {
	crc ^= data
	for i := 0; i < 8; i++ {
		if (crc & 0x80) != 0 {
			crc = (crc << 1) ^ poly
		} else {
			crc <<= 1
		}
	}
	return crc
}

// CRC8_p93_next feeds one byte.
func CRC8_p93_next(crc, data byte) byte { return table93[crc^data] }

// CRC8_p93_n feeds all bytes of data.
func CRC8_p93_n(crc byte, data []byte) byte {
	for _, b := range data {
		crc = table93[crc^b]
	}
	return crc
}
