package server

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmpim/blockart"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	palette, err := blockart.LoadPalette([]blockart.Record{
		{ID: "black_wool", Color: blockart.RGB{R: 20, G: 21, B: 26}, Valid: true},
		{ID: "white_wool", Color: blockart.RGB{R: 234, G: 236, B: 237}, Valid: true},
		{ID: "red_wool", Color: blockart.RGB{R: 200, G: 50, B: 50}, Valid: true},
	}, nil)
	require.NoError(t, err)

	index, err := blockart.BuildIndex(palette, blockart.DefaultWeights)
	require.NoError(t, err)

	synth := blockart.NewSynthesizer(index, blockart.SynthOptions{Workers: 2})
	return New(synth, Options{
		DefaultWidth:  16,
		DefaultOrigin: blockart.Point{Y: 64},
	})
}

func encodedImage(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

// hugeHeaderPNG returns a small PNG whose header declares a w by h image.
func hugeHeaderPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := encodedImage(t, 1, 1, color.White)

	// IHDR follows the 8 byte signature: length, type, width, height, ...
	require.Equal(t, "IHDR", string(data[12:16]))
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeImageLimit(t *testing.T) {
	_, err := decodeImage(hugeHeaderPNG(t, 50000, 50000))
	assert.Equal(t, errImageTooLarge, err)

	_, err = decodeImage(hugeHeaderPNG(t, MaxImagePixels+1, 1))
	assert.Equal(t, errImageTooLarge, err)

	img, err := decodeImage(encodedImage(t, 3, 2, color.Black))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
}

func TestMosaicRejectsHugeImage(t *testing.T) {
	e := testServer(t).Echo()

	for _, path := range []string{"/api/mosaic", "/api/commands"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(hugeHeaderPNG(t, 50000, 50000))))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestCommandStreamRejectsHugeImage(t *testing.T) {
	ts := httptest.NewServer(testServer(t).Echo())
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws/commands", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"width": 16}`)))
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, hugeHeaderPNG(t, 50000, 50000)))

	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseUnsupportedData), "%v", err)
}

func TestPalette(t *testing.T) {
	e := testServer(t).Echo()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/palette", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var ids []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.Equal(t, []string{"black_wool", "white_wool", "red_wool"}, ids)
}

func TestMosaic(t *testing.T) {
	e := testServer(t).Echo()

	body := encodedImage(t, 4, 8, color.RGBA{200, 50, 50, 255})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/mosaic?width=20", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 32), img.Bounds())
}

func TestCommands(t *testing.T) {
	e := testServer(t).Echo()

	body := encodedImage(t, 2, 2, color.Black)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/commands?x=10&z=-5&axis=flat", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 256)
	assert.Equal(t, "setblock 10 64 10 minecraft:black_wool", lines[0])
	assert.Equal(t, "setblock 25 64 -5 minecraft:black_wool", lines[255])
}

func TestCommandsBadRequest(t *testing.T) {
	e := testServer(t).Echo()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/commands", strings.NewReader("not an image")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := encodedImage(t, 2, 2, color.Black)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/commands?axis=sideways", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/commands?width=4096", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/commands?x=left", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandStream(t *testing.T) {
	ts := httptest.NewServer(testServer(t).Echo())
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws/commands", nil)
	require.NoError(t, err)
	defer ws.Close()

	req, err := json.Marshal(map[string]interface{}{"width": 16, "height": 32})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, req))
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, encodedImage(t, 1, 1, color.White)))

	var lines []string
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
		assert.Equal(t, websocket.TextMessage, msgType)
		lines = append(lines, string(data))
	}

	require.Len(t, lines, 16*32)
	assert.Equal(t, "setblock 0 95 0 minecraft:white_wool", lines[0])
	assert.Equal(t, "setblock 15 64 0 minecraft:white_wool", lines[len(lines)-1])
}
