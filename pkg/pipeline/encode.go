package pipeline

import (
	"bytes"

	"github.com/matzehuels/seamcarve/pkg/core/seam"
	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/imageio"
)

// Encode writes img in opts.Format. With opts.Cropped only the active
// columns are written.
func Encode(img *seam.Image, opts Options) ([]byte, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	out := img
	if opts.Cropped {
		if out = img.Cropped(); out == nil {
			return nil, errors.New(errors.ErrCodeInvalidDimensions,
				"every column was removed; nothing to crop")
		}
	}
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, out, opts.Format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
