// Package server exposes mosaic synthesis over HTTP and websockets.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tmpim/blockart"
)

// MaxGridWidth bounds the mosaic size a client may request.
const MaxGridWidth = 1024

// MaxImagePixels bounds the decoded size of an uploaded image. It is checked
// against the image header before any pixels are decoded.
const MaxImagePixels = 4096 * 4096

// maxUploadBytes matches the "32M" body limit for websocket messages.
const maxUploadBytes = 32 << 20

var errImageTooLarge = errors.New("image must not exceed " + strconv.Itoa(MaxImagePixels) + " pixels")

// Options configure a Server.
type Options struct {
	Format        blockart.CommandFormat
	DefaultWidth  int
	DefaultOrigin blockart.Point
	DefaultPolicy blockart.AxisPolicy
	Logger        *log.Logger
}

// Server serves mosaics generated by a shared, read-only Synthesizer.
type Server struct {
	synth    *blockart.Synthesizer
	opts     Options
	upgrader websocket.Upgrader
}

// New returns a server backed by synth.
func New(synth *blockart.Synthesizer, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.DefaultWidth <= 0 {
		opts.DefaultWidth = 128
	}
	if opts.Format.Verb == "" {
		opts.Format = blockart.DefaultCommandFormat
	}

	return &Server{
		synth: synth,
		opts:  opts,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
		},
	}
}

// Request describes a mosaic to generate.
type Request struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	X      *int   `json:"x"`
	Y      *int   `json:"y"`
	Z      *int   `json:"z"`
	Axis   string `json:"axis"`
}

func (s *Server) origin(req Request) blockart.Point {
	origin := s.opts.DefaultOrigin
	if req.X != nil {
		origin.X = *req.X
	}
	if req.Y != nil {
		origin.Y = *req.Y
	}
	if req.Z != nil {
		origin.Z = *req.Z
	}
	return origin
}

func (s *Server) policy(req Request) (blockart.AxisPolicy, error) {
	if req.Axis == "" {
		return s.opts.DefaultPolicy, nil
	}
	return blockart.ParseAxisPolicy(req.Axis)
}

func (s *Server) synthesize(ctx context.Context, img image.Image, req Request) (*blockart.Grid, error) {
	width := req.Width
	if width == 0 {
		width = s.opts.DefaultWidth
	}
	if width > MaxGridWidth || req.Height > MaxGridWidth {
		return nil, errors.New("mosaic dimensions must not exceed " + strconv.Itoa(MaxGridWidth))
	}

	spec, err := blockart.NewGridSpec(img.Bounds(), width, req.Height)
	if err != nil {
		return nil, err
	}
	if spec.Height > MaxGridWidth {
		return nil, errors.New("mosaic dimensions must not exceed " + strconv.Itoa(MaxGridWidth))
	}

	return s.synth.Synthesize(ctx, img, spec)
}

// Echo returns the server's routes.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetOutput(s.opts.Logger.Writer())

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Output: s.opts.Logger.Writer(),
	}))
	e.Use(middleware.BodyLimit("32M"))

	api := e.Group("/api")

	api.GET("/palette", s.handlePalette)
	api.POST("/mosaic", s.handleMosaic)
	api.POST("/commands", s.handleCommands)
	api.GET("/ws/commands", s.handleCommandStream)

	return e
}

// Start serves on addr until the listener fails.
func (s *Server) Start(addr string) error {
	return s.Echo().Start(addr)
}

func (s *Server) handlePalette(c echo.Context) error {
	return c.JSON(http.StatusOK, s.synth.Index().Palette().IDs())
}

func bindRequest(c echo.Context) (Request, error) {
	var req Request
	err := echo.QueryParamsBinder(c).
		Int("width", &req.Width).
		Int("height", &req.Height).
		String("axis", &req.Axis).
		BindError()
	if err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	for name, dst := range map[string]**int{"x": &req.X, "y": &req.Y, "z": &req.Z} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return req, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
		}
		*dst = &v
	}

	return req, nil
}

// decodeImage decodes data, refusing images whose header declares more than
// MaxImagePixels.
func decodeImage(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New("failed to decode image: " + err.Error())
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxImagePixels/cfg.Height {
		return nil, errImageTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New("failed to decode image: " + err.Error())
	}
	return img, nil
}

func decodeBody(c echo.Context) (image.Image, error) {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return img, nil
}

func (s *Server) handleMosaic(c echo.Context) error {
	req, err := bindRequest(c)
	if err != nil {
		return err
	}

	img, err := decodeBody(c)
	if err != nil {
		return err
	}

	grid, err := s.synthesize(c.Request().Context(), img, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, grid.Image()); err != nil {
		return err
	}

	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleCommands(c echo.Context) error {
	req, err := bindRequest(c)
	if err != nil {
		return err
	}

	policy, err := s.policy(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	img, err := decodeBody(c)
	if err != nil {
		return err
	}

	grid, err := s.synthesize(c.Request().Context(), img, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	_, err = s.opts.Format.WriteCommands(c.Response(), blockart.Emit(grid, s.origin(req), policy))
	return err
}

// handleCommandStream expects a JSON Request followed by a binary image
// message, then streams one text message per command and closes.
func (s *Server) handleCommandStream(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(maxUploadBytes)

	fail := func(msg string) error {
		s.opts.Logger.Println("blockart server: command stream:", msg)
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, msg))
		return nil
	}

	_, data, err := ws.ReadMessage()
	if err != nil {
		return fail("failed to read request: " + err.Error())
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fail("failed to decode request: " + err.Error())
	}

	policy, err := s.policy(req)
	if err != nil {
		return fail(err.Error())
	}

	msgType, data, err := ws.ReadMessage()
	if err != nil {
		return fail("failed to read image: " + err.Error())
	}
	if msgType != websocket.BinaryMessage {
		return fail("image must be sent as a binary message")
	}

	img, err := decodeImage(data)
	if err != nil {
		return fail(err.Error())
	}

	grid, err := s.synthesize(c.Request().Context(), img, req)
	if err != nil {
		return fail(err.Error())
	}

	for in := range blockart.Emit(grid, s.origin(req), policy) {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(s.opts.Format.Format(in))); err != nil {
			s.opts.Logger.Println("blockart server: client disconnected:", err)
			return nil
		}
	}

	ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}
