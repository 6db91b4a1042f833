package canvas

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/forPelevin/beatreel/internal/types"
)

// PadMode selects the background used when a source is wider than the target.
type PadMode int

const (
	PadBlur PadMode = iota
	PadBlack
)

// BlurSigma is the Gaussian sigma, in target pixels, of the PadBlur background.
const BlurSigma = 20.0

func (m PadMode) String() string {
	switch m {
	case PadBlack:
		return "black"
	default:
		return "blur"
	}
}

func ParsePadMode(s string) (PadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "blur":
		return PadBlur, nil
	case "black":
		return PadBlack, nil
	default:
		return PadBlur, fmt.Errorf("unknown pad mode %q (want blur or black)", s)
	}
}

// Normalize produces an opaque w×h canvas from img.
//
// Sources narrower than the target are scaled to cover it and center-cropped.
// Sources that are wider, or exactly match the target ratio, are scaled to fit
// and centered over the pad background.
func Normalize(img image.Image, w, h int, pad PadMode) (*image.RGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", types.ErrInvalidImage)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", types.ErrInvalidImage, b.Dx(), b.Dy())
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: target size %dx%d", types.ErrInvalidImage, w, h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if isNarrower(b.Dx(), b.Dy(), w, h) {
		fillCrop(dst, img)
	} else {
		fillPad(dst, img, pad)
	}
	return dst, nil
}

func isNarrower(sw, sh, w, h int) bool {
	return int64(sw)*int64(h) < int64(w)*int64(sh)
}

func fillCrop(dst *image.RGBA, img image.Image) {
	db := dst.Bounds()
	fillBlack(dst)
	xdraw.CatmullRom.Scale(dst, db, img, CoverRect(img.Bounds(), db.Dx(), db.Dy()), draw.Over, nil)
}

func fillPad(dst *image.RGBA, img image.Image, pad PadMode) {
	db := dst.Bounds()
	fillBlack(dst)
	if pad == PadBlur {
		blurredBackground(dst, img, BlurSigma)
	}
	xdraw.CatmullRom.Scale(dst, FitRect(img.Bounds(), db.Dx(), db.Dy()), img, img.Bounds(), draw.Over, nil)
}

// CoverRect returns the centered part of src with the w:h ratio that remains
// after scaling src to cover w×h. Width is matched first; when the height would
// then fall short, height is matched and the sides are cropped instead.
func CoverRect(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	cw := sw
	ch := roundDiv(int64(sw)*int64(h), int64(w))
	if ch > sh {
		ch = sh
		cw = roundDiv(int64(sh)*int64(w), int64(h))
	}
	cw = clamp(cw, 1, sw)
	ch = clamp(ch, 1, sh)
	x0 := src.Min.X + (sw-cw)/2
	y0 := src.Min.Y + (sh-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

// FitRect returns where src lands inside a w×h canvas when scaled to fit and centered.
func FitRect(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	var nw, nh int
	if isNarrower(sw, sh, w, h) {
		nh = h
		nw = roundDiv(int64(sw)*int64(h), int64(sh))
	} else {
		nw = w
		nh = roundDiv(int64(sh)*int64(w), int64(sw))
	}
	nw = clamp(nw, 1, w)
	nh = clamp(nh, 1, h)
	x0 := (w - nw) / 2
	y0 := (h - nh) / 2
	return image.Rect(x0, y0, x0+nw, y0+nh)
}

func fillBlack(dst *image.RGBA) {
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
}

func roundDiv(a, b int64) int {
	return int((2*a + b) / (2 * b))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
