// Package ppm reads and writes portable pixmaps.
//
// Decode accepts both the plain (P3) and raw (P6) variants with a maximum
// channel value of 255. Encode writes P3 with one text line per image row;
// EncodeRaw writes P6. Both writers cover the full physical width of the
// image, so carved-away columns appear as black.
//
// See http://netpbm.sourceforge.net/doc/ppm.html for the format.
package ppm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/matzehuels/seamcarve/pkg/core/seam"
	"github.com/matzehuels/seamcarve/pkg/errors"
)

const maxValue = 255

// Decode reads a P3 or P6 image from r with the default pixel limit.
func Decode(r io.Reader) (*seam.Image, error) {
	return DecodeLimited(r, errors.MaxPixels)
}

// DecodeLimited reads a P3 or P6 image from r. Headers declaring more than
// maxPixels pixels are rejected before any pixel memory is allocated.
// Trailing data after the last pixel, other than whitespace, is an error.
func DecodeLimited(r io.Reader, maxPixels int) (*seam.Image, error) {
	s := &scanner{r: bufio.NewReader(r)}

	magic, err := s.token()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "read magic number")
	}
	if magic != "P3" && magic != "P6" {
		return nil, errors.New(errors.ErrCodeInvalidImage, "unsupported magic number %q", magic)
	}

	w, err := s.int("width")
	if err != nil {
		return nil, err
	}
	h, err := s.int("height")
	if err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidImage, "invalid dimensions %dx%d", w, h)
	}
	if err := errors.ValidatePixelCount(w, h, maxPixels); err != nil {
		return nil, err
	}
	maxv, err := s.int("max value")
	if err != nil {
		return nil, err
	}
	if maxv != maxValue {
		return nil, errors.New(errors.ErrCodeInvalidImage, "max value %d not supported (want %d)", maxv, maxValue)
	}

	img, err := seam.NewImage(w, h)
	if err != nil {
		return nil, err
	}

	if magic == "P6" {
		buf := make([]byte, 3*w*h)
		if _, err := io.ReadFull(s.r, buf); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "read pixel data")
		}
		for i := range img.Pixels {
			img.Pixels[i] = seam.Pixel{R: buf[3*i], G: buf[3*i+1], B: buf[3*i+2]}
		}
	} else {
		for i := range img.Pixels {
			var ch [3]uint8
			for c := range ch {
				v, err := s.int("channel")
				if err != nil {
					return nil, err
				}
				if v > maxValue {
					return nil, errors.New(errors.ErrCodeInvalidImage, "channel value %d exceeds %d at pixel %d", v, maxValue, i)
				}
				ch[c] = uint8(v)
			}
			img.Pixels[i] = seam.Pixel{R: ch[0], G: ch[1], B: ch[2]}
		}
	}

	if err := s.expectEOF(); err != nil {
		return nil, err
	}
	return img, nil
}

// Encode writes img as a plain (P3) pixmap.
func Encode(w io.Writer, img *seam.Image) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P3\n%d %d\n%d\n", img.Width, img.Height, maxValue)

	var num []byte
	for row := 0; row < img.Height; row++ {
		for _, p := range img.Row(row) {
			for _, v := range [3]uint8{p.R, p.G, p.B} {
				num = strconv.AppendUint(num[:0], uint64(v), 10)
				num = append(num, ' ')
				bw.Write(num)
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// EncodeRaw writes img as a raw (P6) pixmap.
func EncodeRaw(w io.Writer, img *seam.Image) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P6\n%d %d\n%d\n", img.Width, img.Height, maxValue)
	for _, p := range img.Pixels {
		bw.Write([]byte{p.R, p.G, p.B})
	}
	return bw.Flush()
}

// scanner splits the header and plain pixel data into whitespace-separated
// tokens, skipping '#' comments.
type scanner struct {
	r   *bufio.Reader
	buf []byte
}

// token returns the next token and consumes exactly one trailing whitespace
// byte, which is what P6 requires before binary data.
func (s *scanner) token() (string, error) {
	if err := s.skipSpace(); err != nil {
		return "", err
	}
	s.buf = s.buf[:0]
	for {
		b, err := s.r.ReadByte()
		if err == io.EOF {
			if len(s.buf) == 0 {
				return "", io.ErrUnexpectedEOF
			}
			return string(s.buf), nil
		}
		if err != nil {
			return "", err
		}
		if isSpace(b) {
			return string(s.buf), nil
		}
		s.buf = append(s.buf, b)
	}
}

func (s *scanner) int(what string) (int, error) {
	tok, err := s.token()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidImage, err, "read %s", what)
	}
	v, err := strconv.Atoi(tok)
	if err != nil || v < 0 {
		return 0, errors.New(errors.ErrCodeInvalidImage, "invalid %s %q", what, tok)
	}
	return v, nil
}

func (s *scanner) skipSpace() error {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		switch {
		case isSpace(b):
		case b == '#':
			if _, err := s.r.ReadString('\n'); err != nil && err != io.EOF {
				return err
			}
		default:
			return s.r.UnreadByte()
		}
	}
}

func (s *scanner) expectEOF() error {
	for {
		b, err := s.r.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidImage, err, "read trailer")
		}
		if !isSpace(b) {
			return errors.New(errors.ErrCodeInvalidImage, "unexpected data after pixel %q", b)
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}
