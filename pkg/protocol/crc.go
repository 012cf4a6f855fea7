package protocol

// crc16 computes the CRC-16/Modbus checksum the UPS appends to every frame
// (polynomial 0xA001 reflected, initial value 0xFFFF).
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)

	for _, b := range data {
		crc ^= uint16(b)

		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}

	return crc
}
