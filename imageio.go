package blockart

import (
	"bufio"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadImage decodes the image file at path. PNG, JPEG, GIF, BMP, TIFF and
// WebP are supported.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blockart: failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("blockart: failed to decode image %s: %w", path, err)
	}

	return img, nil
}

// EncodeImage encodes img in the format named by ext (".png", ".jpg",
// ".gif", ".bmp" or ".tiff"). Unknown extensions encode PNG.
func EncodeImage(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case ".gif":
		return gif.Encode(w, img, nil)
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, nil)
	}
	return png.Encode(w, img)
}

// SaveImage writes img to path, creating parent directories as needed.
func SaveImage(path string, img image.Image) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeImage(w, img, filepath.Ext(path))
	})
}

// SaveCommands writes the command file for seq to path, creating parent
// directories as needed, and returns the number of commands written.
func SaveCommands(path string, seq iter.Seq[Instruction], format CommandFormat) (int, error) {
	var n int
	err := writeFile(path, func(w io.Writer) error {
		var err error
		n, err = format.WriteCommands(w, seq)
		return err
	})
	return n, err
}

func writeFile(path string, write func(w io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("blockart: failed to create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("blockart: failed to create %s: %w", path, err)
	}

	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("blockart: failed to write %s: %w", path, err)
	}

	return f.Close()
}
