package seam

// Carve removes s from the active region and shrinks the active width by one.
//
// In every row the pixels right of s[row] move one column left and the
// vacated column active-1 is set to Black. Columns at or beyond the old
// active width are not touched.
func (img *Image) Carve(s Seam) error {
	if err := img.checkActive(); err != nil {
		return err
	}
	if err := s.Validate(img.Height, img.active); err != nil {
		return err
	}
	for row, col := range s {
		px := img.ActiveRow(row)
		copy(px[col:], px[col+1:])
		px[len(px)-1] = Black
	}
	img.active--
	return nil
}
