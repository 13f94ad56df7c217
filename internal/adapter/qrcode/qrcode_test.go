package qrcode

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/url-shortener/internal/entity"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestEncoder_Encode(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{name: "default size", size: 200},
		{name: "minimum size", size: 50},
		{name: "maximum size", size: 1000},
	}

	enc := NewEncoder()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := enc.Encode("https://example.com", tt.size)
			require.NoError(t, err)

			assert.True(t, bytes.HasPrefix(data, pngSignature))

			cfg, err := png.DecodeConfig(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tt.size, cfg.Width)
			assert.Equal(t, tt.size, cfg.Height)
		})
	}
}

func TestEncoder_EncodeTooMuchData(t *testing.T) {
	_, err := NewEncoder().Encode("https://example.com/"+strings.Repeat("a", 2028), 200)

	assert.ErrorIs(t, err, entity.ErrQRCodeCapacityExceeded)
}

func TestEncoder_EncodeGrowsPastSize(t *testing.T) {
	data, err := NewEncoder().Encode("https://example.com/"+strings.Repeat("a", 180), 50)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Greater(t, cfg.Width, 50)
	assert.Equal(t, cfg.Width, cfg.Height)
}

func TestEncoder_EncodeEmpty(t *testing.T) {
	_, err := NewEncoder().Encode("", 200)

	assert.Error(t, err)
	assert.NotErrorIs(t, err, entity.ErrQRCodeCapacityExceeded)
}
