// File: internal/imaging/exif.go
package imaging

import "encoding/binary"

// detectOrientation hand-parses the EXIF orientation tag (0x0112) out of a
// JPEG's APP1 segment. No EXIF library appears anywhere in the reference
// corpus, so this is a deliberately narrow reader: it understands only the
// TIFF header and the one IFD0 tag admission preprocessing needs, not the
// general EXIF tag space. Returns 1 (identity) if the marker, TIFF header,
// or tag is absent or malformed.
func detectOrientation(jpegData []byte) int {
	const identity = 1
	if len(jpegData) < 4 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		return identity
	}
	pos := 2
	for pos+4 <= len(jpegData) {
		if jpegData[pos] != 0xFF {
			return identity
		}
		marker := jpegData[pos+1]
		if marker == 0xD8 || marker == 0xD9 {
			pos += 2
			continue
		}
		segLen := int(binary.BigEndian.Uint16(jpegData[pos+2 : pos+4]))
		if marker == 0xE1 { // APP1 (EXIF)
			segStart := pos + 4
			segEnd := pos + 2 + segLen
			if segEnd > len(jpegData) {
				return identity
			}
			if o := parseExifOrientation(jpegData[segStart:segEnd]); o != 0 {
				return o
			}
			return identity
		}
		if marker == 0xDA { // start of scan; no more markers precede image data
			return identity
		}
		pos += 2 + segLen
	}
	return identity
}

func parseExifOrientation(seg []byte) int {
	if len(seg) < 10 || string(seg[0:6]) != "Exif\x00\x00" {
		return 0
	}
	tiff := seg[6:]
	if len(tiff) < 8 {
		return 0
	}
	var order binary.ByteOrder
	switch string(tiff[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0
	}
	ifdOffset := order.Uint32(tiff[4:8])
	if int(ifdOffset)+2 > len(tiff) {
		return 0
	}
	numEntries := int(order.Uint16(tiff[ifdOffset : ifdOffset+2]))
	entriesStart := int(ifdOffset) + 2
	for i := 0; i < numEntries; i++ {
		entryOffset := entriesStart + i*12
		if entryOffset+12 > len(tiff) {
			break
		}
		entry := tiff[entryOffset : entryOffset+12]
		tag := order.Uint16(entry[0:2])
		if tag == 0x0112 {
			value := order.Uint16(entry[8:10])
			if value >= 1 && value <= 8 {
				return int(value)
			}
			return 0
		}
	}
	return 0
}
