package pipeline

import (
	"bytes"

	"github.com/matzehuels/seamcarve/pkg/core/seam"
	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/imageio"
)

// Decode parses input into an image. An empty format detects the encoding
// from the leading bytes. Images larger than the decoder's pixel limit are
// rejected with INVALID_DIMENSIONS.
func Decode(input []byte, format imageio.Format, opts ...imageio.DecodeOption) (*seam.Image, imageio.Format, error) {
	if len(input) == 0 {
		return nil, "", errors.New(errors.ErrCodeInvalidImage, "empty input")
	}
	if format == "" {
		return imageio.DecodeBytes(input, opts...)
	}
	img, err := imageio.Decode(bytes.NewReader(input), format, opts...)
	if err != nil {
		return nil, "", err
	}
	return img, format, nil
}
