package pipeline

import "fmt"

// Layout is the memory order of an image tensor.
type Layout int

const (
	NCHW Layout = iota
	NHWC
)

func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "NCHW":
		return NCHW, nil
	case "NHWC":
		return NHWC, nil
	default:
		return NCHW, fmt.Errorf("pipeline: unknown layout %q", s)
	}
}

func (l Layout) String() string {
	if l == NHWC {
		return "NHWC"
	}
	return "NCHW"
}

// ImageShape arranges (channels, height, width) into this layout's
// per-image dimension order.
func (l Layout) ImageShape(c, h, w int) []int {
	if l == NHWC {
		return []int{h, w, c}
	}
	return []int{c, h, w}
}
