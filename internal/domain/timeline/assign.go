package timeline

import (
	"fmt"

	"github.com/forPelevin/beatreel/internal/types"
)

// Assign pairs slot i with images[i mod len(images)].
func Assign(slots []types.TimelineSlot, images []types.ImageRef) ([]types.RenderSlot, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: %d slots need at least one image", types.ErrEmptyImageSet, len(slots))
	}
	out := make([]types.RenderSlot, len(slots))
	for i, s := range slots {
		idx := i % len(images)
		out[i] = types.RenderSlot{
			Image:      images[idx],
			ImageIndex: idx,
			Start:      s.Start,
			Duration:   s.Duration,
		}
	}
	return out, nil
}
