package cinch

import (
	"encoding/binary"
	"image"
	"io"
)

// Orientation is an EXIF orientation tag value (1-8). compressCore reads
// one from the source bytes when Options.AutoOrient is set, so a photo
// shot in portrait on its side doesn't get compressed sideways.
type Orientation int

const (
	OrientNormal      Orientation = 1
	OrientFlipH       Orientation = 2
	OrientRotate180   Orientation = 3
	OrientFlipV       Orientation = 4
	OrientTranspose   Orientation = 5 // rotate 90 CW, then flip horizontal
	OrientRotate90CW  Orientation = 6
	OrientTransverse  Orientation = 7 // rotate 270 CW, then flip horizontal
	OrientRotate270CW Orientation = 8
)

// ReadOrientation reads the EXIF orientation tag out of a JPEG stream,
// returning OrientNormal if the source isn't JPEG or carries no orientation
// tag. It only walks markers far enough to find APP1 — cinch has no
// general EXIF reader, since Options.AutoOrient is the only thing that
// needs one.
func ReadOrientation(r io.ReadSeeker) Orientation {
	var soi [2]byte
	if _, err := io.ReadFull(r, soi[:]); err != nil {
		return OrientNormal
	}
	if soi[0] != 0xFF || soi[1] != 0xD8 {
		return OrientNormal
	}

	for {
		var marker [2]byte
		if _, err := io.ReadFull(r, marker[:]); err != nil {
			return OrientNormal
		}
		if marker[0] != 0xFF {
			return OrientNormal
		}

		for marker[1] == 0xFF {
			if _, err := io.ReadFull(r, marker[1:]); err != nil {
				return OrientNormal
			}
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return OrientNormal
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf[:])) - 2
		if segLen < 0 {
			return OrientNormal
		}

		switch marker[1] {
		case 0xE1: // APP1 — EXIF lives here.
			return parseAPP1(r, segLen)
		case 0xDA: // SOS — scan data follows, no more metadata to find.
			return OrientNormal
		}

		if _, err := r.Seek(int64(segLen), io.SeekCurrent); err != nil {
			return OrientNormal
		}
	}
}

// parseAPP1 extracts the orientation tag from one APP1 segment's TIFF/IFD0
// structure. Any malformed or unexpected byte sequence falls back to
// OrientNormal rather than erroring — a source with broken EXIF should
// still compress, just without auto-rotation.
func parseAPP1(r io.ReadSeeker, segLen int) Orientation {
	if segLen < 14 {
		return OrientNormal
	}

	segment := make([]byte, segLen)
	if _, err := io.ReadFull(r, segment); err != nil {
		return OrientNormal
	}

	if len(segment) < 6 || string(segment[:4]) != "Exif" || segment[4] != 0 || segment[5] != 0 {
		return OrientNormal
	}

	tiffData := segment[6:]
	if len(tiffData) < 8 {
		return OrientNormal
	}

	var order binary.ByteOrder
	switch string(tiffData[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return OrientNormal
	}

	if order.Uint16(tiffData[2:4]) != 42 { // TIFF magic number
		return OrientNormal
	}

	ifdOffset := int(order.Uint32(tiffData[4:8]))
	if ifdOffset < 8 || ifdOffset+2 > len(tiffData) {
		return OrientNormal
	}

	entryCount := int(order.Uint16(tiffData[ifdOffset : ifdOffset+2]))
	ifdOffset += 2

	const orientationTag = 0x0112
	const shortType = 3

	for i := 0; i < entryCount; i++ {
		entryOff := ifdOffset + i*12
		if entryOff+12 > len(tiffData) {
			break
		}

		tag := order.Uint16(tiffData[entryOff : entryOff+2])
		if tag != orientationTag {
			continue
		}
		if order.Uint16(tiffData[entryOff+2:entryOff+4]) != shortType {
			return OrientNormal
		}
		tagValue := order.Uint16(tiffData[entryOff+8 : entryOff+10])
		if tagValue >= 1 && tagValue <= 8 {
			return Orientation(tagValue)
		}
		return OrientNormal
	}

	return OrientNormal
}

// ApplyOrientation rotates/flips img so its pixel data matches orientation
// 1 (normal), the form every downstream step — resize ladder, AdaptiveSharpen,
// SSIM scoring — assumes it's already in.
func ApplyOrientation(img *image.NRGBA, orient Orientation) *image.NRGBA {
	switch orient {
	case OrientNormal, 0:
		return img
	case OrientFlipH:
		return flipNRGBAHorizontal(img)
	case OrientRotate180:
		return rotateNRGBA180(img)
	case OrientFlipV:
		return flipNRGBAVertical(img)
	case OrientTranspose:
		return flipNRGBAHorizontal(rotateNRGBA90CW(img))
	case OrientRotate90CW:
		return rotateNRGBA90CW(img)
	case OrientTransverse:
		return flipNRGBAHorizontal(rotateNRGBA270CW(img))
	case OrientRotate270CW:
		return rotateNRGBA270CW(img)
	default:
		return img
	}
}
