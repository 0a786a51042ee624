package common

import (
	"encoding/binary"
	"io"
	"math"
)

// Key encodings below keep bytes.Compare order equal to value order.

func EncodeInt64(buf []byte, v int64) []byte {
	return EncodeUint64(buf, uint64(v)^(1<<63))
}

func EncodeUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func EncodeFloat64(buf []byte, v float64) []byte {
	bits := math.Float64bits(v)
	if v >= 0 {
		bits |= 1 << 63
	} else {
		bits = ^bits
	}
	return EncodeUint64(buf, bits)
}

// EncodeBytes escapes 0x00 as 0x00 0xff and terminates with 0x00 0x01.
func EncodeBytes(buf []byte, v []byte) []byte {
	for _, c := range v {
		if c == 0 {
			buf = append(buf, 0, 0xff)
			continue
		}
		buf = append(buf, c)
	}
	return append(buf, 0, 1)
}

// EncodeNull sorts before any encoded value.
func EncodeNull(buf []byte) []byte {
	return append(buf, 0)
}

func EncodeNotNull(buf []byte) []byte {
	return append(buf, 1)
}

func WriteString(str string, w io.Writer) (n int64, err error) {
	buf := []byte(str)
	if err = binary.Write(w, binary.BigEndian, uint16(len(buf))); err != nil {
		return
	}
	wn, err := w.Write(buf)
	return int64(wn + 2), err
}
