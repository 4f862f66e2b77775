package seam

// Statistics summarises an image for display.
type Statistics struct {
	Width      int   `json:"width"`
	Height     int   `json:"height"`
	Brightness uint8 `json:"brightness"`
}

// Stats reports the physical size and mean brightness of img. Each pixel's
// brightness is the truncated mean of its channels; the image brightness is
// the truncated mean of those.
func Stats(img *Image) Statistics {
	st := Statistics{Width: img.Width, Height: img.Height}
	if len(img.Pixels) == 0 {
		return st
	}
	var sum uint64
	for _, p := range img.Pixels {
		sum += (uint64(p.R) + uint64(p.G) + uint64(p.B)) / 3
	}
	st.Brightness = uint8(sum / uint64(len(img.Pixels)))
	return st
}
