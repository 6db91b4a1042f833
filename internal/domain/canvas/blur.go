package canvas

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// The background is blurred at a quarter of the target size; at sigma 20 the
// detail lost to downscaling is invisible once blurred.
const blurDownscale = 4

// blurredBackground stretches img over dst and blurs it. dst must already be
// opaque so that transparent sources still yield an opaque background.
func blurredBackground(dst *image.RGBA, img image.Image, sigma float64) {
	db := dst.Bounds()
	sw := max(1, db.Dx()/blurDownscale)
	sh := max(1, db.Dy()/blurDownscale)
	small := image.NewRGBA(image.Rect(0, 0, sw, sh))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	blurred := imaging.Blur(small, sigma/blurDownscale)
	xdraw.BiLinear.Scale(dst, db, blurred, blurred.Bounds(), draw.Over, nil)
}
