package value

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"testing"
)

func TestEncodeString(t *testing.T) {
	b, err := EncodeString("AB", 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x02, 'A', 'B', 0x00, 0x00}, b)

	b, err = EncodeString("ü", 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x01, 0xfc}, b)

	_, err = EncodeString("toolong", 3)
	assert.Error(t, err)
	_, err = EncodeString("x", 255)
	assert.Error(t, err)
	_, err = EncodeString("水", 10)
	assert.Error(t, err)
}

func TestDecodeStringErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		field string
	}{
		{"no header", []byte{0x04}, "header"},
		{"length over capacity", []byte{0x02, 0x03, 'a', 'b', 'c'}, "length"},
		{"truncated payload", []byte{0x04, 0x03, 'a'}, "payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeString(tt.data)
			var de *s7runtime.DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestWString(t *testing.T) {
	b, err := EncodeWString("Aé", 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x03, 0x00, 0x02, 0x00, 'A', 0x00, 0xe9, 0x00, 0x00}, b)

	s, err := DecodeWString(b)
	require.NoError(t, err)
	assert.Equal(t, "Aé", s)

	_, err = DecodeWString([]byte{0x00, 0x01, 0x00, 0x02, 0x00, 'A', 0x00, 'B'})
	assert.Error(t, err)
	_, err = DecodeWString([]byte{0x00, 0x04, 0x00, 0x02, 0x00, 'A'})
	assert.Error(t, err)
	_, err = EncodeWString("abc", 2)
	assert.Error(t, err)
	_, err = EncodeWString("", 16383)
	assert.Error(t, err)
}
