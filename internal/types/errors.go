package types

import "errors"

var (
	ErrInvalidImage  = errors.New("invalid image")
	ErrInvalidAudio  = errors.New("invalid audio")
	ErrEmptyImageSet = errors.New("no images to assign")
	ErrEncode        = errors.New("encode failed")
	// ErrDetection marks a soft beat detector failure; callers fall back to
	// evenly spaced slots instead of aborting.
	ErrDetection = errors.New("beat detection failed")
)
