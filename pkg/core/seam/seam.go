package seam

import (
	"github.com/matzehuels/seamcarve/pkg/errors"
)

// Seam is a connected top-to-bottom path: Seam[row] is the column removed
// from that row. Adjacent rows differ by at most one column.
type Seam []int

// Validate checks that s is a connected path of the given height inside
// [0, active).
func (s Seam) Validate(height, active int) error {
	if len(s) != height {
		return errors.New(errors.ErrCodeInvalidSeam, "seam has %d rows, image has %d", len(s), height)
	}
	for row, col := range s {
		if col < 0 || col >= active {
			return errors.New(errors.ErrCodeInvalidSeam,
				"seam column %d at row %d outside active width %d", col, row, active)
		}
		if row > 0 {
			if d := col - s[row-1]; d < -1 || d > 1 {
				return errors.New(errors.ErrCodeInvalidSeam,
					"seam jumps from column %d to %d at row %d", s[row-1], col, row)
			}
		}
	}
	return nil
}

// MinColumn returns the leftmost column of the bottom row holding the
// smallest cumulative energy among the first active columns.
func MinColumn(e *Energy, active int) (int, error) {
	if err := checkTable(e, active); err != nil {
		return 0, err
	}
	return minColumn(e, active), nil
}

// Trace backtracks the cheapest path from (Height-1, start) to the top row.
//
// At every row the path stays in the same column if that is no more
// expensive than the alternatives; otherwise it moves left if left is no more
// expensive than right, else right.
func Trace(e *Energy, active, start int) (Seam, error) {
	if err := checkTable(e, active); err != nil {
		return nil, err
	}
	if start < 0 || start >= active {
		return nil, errors.New(errors.ErrCodeInvalidSeam,
			"start column %d outside active width %d", start, active)
	}
	return trace(e, active, start), nil
}

func minColumn(e *Energy, active int) int {
	bottom := e.Row(e.Height-1, active)
	best := 0
	for col := 1; col < len(bottom); col++ {
		if bottom[col] < bottom[best] {
			best = col
		}
	}
	return best
}

func trace(e *Energy, active, start int) Seam {
	s := make(Seam, e.Height)
	s[e.Height-1] = start
	for row := e.Height - 2; row >= 0; row-- {
		s[row] = next(e.Row(row, active), s[row+1])
	}
	return s
}

// next picks the column in row that continues a path arriving at col from
// below. Ordered comparisons only: the branch order is the tie-break.
func next(row []uint64, col int) int {
	last := len(row) - 1
	switch {
	case last == 0:
		return 0
	case col == 0:
		if row[0] <= row[1] {
			return 0
		}
		return 1
	case col == last:
		if row[col] <= row[col-1] {
			return col
		}
		return col - 1
	default:
		left, stay, right := row[col-1], row[col], row[col+1]
		if stay <= left && stay <= right {
			return col
		}
		if left <= right {
			return col - 1
		}
		return col + 1
	}
}

// Find returns the minimum-energy seam of a table computed for the given
// active width.
func Find(e *Energy, active int) (Seam, error) {
	if err := checkTable(e, active); err != nil {
		return nil, err
	}
	return trace(e, active, minColumn(e, active)), nil
}

// checkTable reports whether e is a complete table and active lies in
// [1, e.Width].
func checkTable(e *Energy, active int) error {
	if err := errors.ValidateDimensions(e.Width, e.Height); err != nil {
		return err
	}
	if len(e.Values) != e.Width*e.Height {
		return errors.New(errors.ErrCodeInvalidDimensions,
			"energy table has %d entries, want %d", len(e.Values), e.Width*e.Height)
	}
	return errors.ValidateActiveWidth(active, e.Width)
}
