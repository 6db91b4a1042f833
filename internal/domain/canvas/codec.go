package canvas

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/forPelevin/beatreel/internal/types"
)

// Decode reads ref from memory when Data is set, otherwise from Path.
func Decode(ref types.ImageRef) (image.Image, error) {
	name := ref.Name
	if name == "" {
		name = ref.Path
	}

	var r io.Reader
	if ref.Data != nil {
		r = bytes.NewReader(ref.Data)
	} else {
		f, err := os.Open(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", types.ErrInvalidImage, name, err)
		}
		defer f.Close()
		r = bufio.NewReader(f)
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", types.ErrInvalidImage, name, err)
	}
	return img, nil
}

var pngEncoder = png.Encoder{CompressionLevel: png.BestSpeed}

func Encode(w io.Writer, c *image.RGBA) error {
	return pngEncoder.Encode(w, c)
}

// WriteFile encodes c as PNG at path.
func WriteFile(path string, c *image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := Encode(bw, c); err != nil {
		f.Close()
		return fmt.Errorf("encode canvas %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// NormalizeRef decodes ref and normalizes it onto a w×h canvas.
func NormalizeRef(ref types.ImageRef, w, h int, pad PadMode) (*image.RGBA, error) {
	img, err := Decode(ref)
	if err != nil {
		return nil, err
	}
	return Normalize(img, w, h, pad)
}
