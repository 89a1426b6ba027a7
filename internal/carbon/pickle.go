package carbon

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/aaronlmathis/mesos-stats/internal/timeseries"
)

// Pickle protocol 2 opcodes used by the batch encoding
const (
	opProto      = 0x80
	opEmptyList  = ']'
	opMark       = '('
	opAppends    = 'e'
	opBinUnicode = 'X'
	opBinInt     = 'J'
	opLong1      = 0x8a
	opBinFloat   = 'G'
	opTuple2     = 0x86
	opStop       = '.'
)

// encodePickle renders points as the carbon batch message: a 4-byte
// big-endian length followed by a pickled [(path, (timestamp, value)), ...].
func encodePickle(prefix string, points []timeseries.Datapoint) []byte {
	var body bytes.Buffer
	body.Grow(len(points) * 64)

	body.WriteByte(opProto)
	body.WriteByte(2)
	body.WriteByte(opEmptyList)
	if len(points) > 0 {
		body.WriteByte(opMark)
		for _, p := range points {
			p = p.WithPrefix(prefix)
			writeUnicode(&body, p.Path)
			writeInt(&body, p.Timestamp)
			writeFloat(&body, p.Value)
			body.WriteByte(opTuple2)
			body.WriteByte(opTuple2)
		}
		body.WriteByte(opAppends)
	}
	body.WriteByte(opStop)

	msg := make([]byte, 4, 4+body.Len())
	binary.BigEndian.PutUint32(msg, uint32(body.Len()))
	return append(msg, body.Bytes()...)
}

func writeUnicode(b *bytes.Buffer, s string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	b.WriteByte(opBinUnicode)
	b.Write(n[:])
	b.WriteString(s)
}

func writeInt(b *bytes.Buffer, v int64) {
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(int32(v)))
		b.WriteByte(opBinInt)
		b.Write(n[:])
		return
	}

	// LONG1: minimal little-endian two's complement
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], uint64(v))
	size := 8
	for size > 1 {
		top, next := raw[size-1], raw[size-2]
		if (top == 0x00 && next&0x80 == 0) || (top == 0xff && next&0x80 != 0) {
			size--
			continue
		}
		break
	}
	b.WriteByte(opLong1)
	b.WriteByte(byte(size))
	b.Write(raw[:size])
}

func writeFloat(b *bytes.Buffer, v float64) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], math.Float64bits(v))
	b.WriteByte(opBinFloat)
	b.Write(n[:])
}
