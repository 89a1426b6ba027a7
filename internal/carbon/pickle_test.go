package carbon

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/mesos-stats/internal/timeseries"
)

func TestEncodePickle_SingleDatapoint(t *testing.T) {
	msg := encodePickle("", []timeseries.Datapoint{
		timeseries.NewDatapoint("a.b", 123, 1111),
	})

	body := []byte{
		0x80, 0x02, // PROTO 2
		']', '(', // EMPTY_LIST, MARK
		'X', 0x03, 0x00, 0x00, 0x00, 'a', '.', 'b', // BINUNICODE "a.b"
		'J', 0x57, 0x04, 0x00, 0x00, // BININT 1111
		'G', 0x40, 0x5e, 0xc0, 0x00, 0x00, 0x00, 0x00, 0x00, // BINFLOAT 123.0
		0x86, 0x86, // TUPLE2, TUPLE2
		'e', '.', // APPENDS, STOP
	}

	require.Len(t, msg, 4+len(body))
	assert.Equal(t, uint32(len(body)), binary.BigEndian.Uint32(msg[:4]))
	assert.Equal(t, body, msg[4:])
}

func TestEncodePickle_Prefix(t *testing.T) {
	msg := encodePickle("myprefix.abc", []timeseries.Datapoint{
		timeseries.NewDatapoint("a.b", 1, 1),
	})
	assert.Contains(t, string(msg), "myprefix.abc.a.b")
}

func TestEncodePickle_Empty(t *testing.T) {
	msg := encodePickle("", nil)
	assert.Equal(t, []byte{0, 0, 0, 4, 0x80, 0x02, ']', '.'}, msg)
}

func TestWriteInt(t *testing.T) {
	tests := []struct {
		name     string
		value    int64
		expected []byte
	}{
		{"small", 1, []byte{'J', 0x01, 0x00, 0x00, 0x00}},
		{"negative", -1, []byte{'J', 0xff, 0xff, 0xff, 0xff}},
		{"max int32", 2147483647, []byte{'J', 0xff, 0xff, 0xff, 0x7f}},
		{"beyond int32", 2147483648, []byte{0x8a, 0x05, 0x00, 0x00, 0x00, 0x80, 0x00}},
		{"2^32", 1 << 32, []byte{0x8a, 0x05, 0x00, 0x00, 0x00, 0x00, 0x01}},
		{"millis", 1518165603653, []byte{0x8a, 0x06, 0x45, 0xb5, 0xb8, 0x79, 0x61, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b bytes.Buffer
			writeInt(&b, tt.value)
			assert.Equal(t, tt.expected, b.Bytes())
		})
	}
}
