package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportFormat(t *testing.T) {
	f, err := exportFormat("", "out/board.PDF")
	require.NoError(t, err)
	assert.Equal(t, formatPDF, f)

	f, err = exportFormat("png", "board.bin")
	require.NoError(t, err)
	assert.Equal(t, formatPNG, f)

	_, err = exportFormat("", "board.tiff")
	assert.ErrorIs(t, err, errUnknownFormat)
}

func TestWriteImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	img.SetNRGBA(5, 5, color.NRGBA{R: 0xff, A: 0xff})

	var pngBuf bytes.Buffer
	require.NoError(t, writeImage(&pngBuf, formatPNG, img))
	decoded, err := png.Decode(&pngBuf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	var pdfBuf bytes.Buffer
	require.NoError(t, writeImage(&pdfBuf, formatPDF, img))
	assert.True(t, bytes.HasPrefix(pdfBuf.Bytes(), []byte("%PDF-")))

	assert.ErrorIs(t, writeImage(&bytes.Buffer{}, "svg", img), errUnknownFormat)
}

func TestWSEndpoint(t *testing.T) {
	u, err := wsEndpoint("https://board.example.com/base")
	require.NoError(t, err)
	assert.Equal(t, "wss://board.example.com/base/api/v1/ws", u)

	u, err = wsEndpoint("http://localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/api/v1/ws", u)

	_, err = wsEndpoint("ftp://localhost")
	assert.Error(t, err)
}
