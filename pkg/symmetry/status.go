package symmetry

import (
	"fmt"
	"io"
)

// WriteStatus writes one search status line: iteration, rise in Angstroms,
// twist in degrees and correlation, separated by spaces. A nil writer is
// ignored.
func WriteStatus(w io.Writer, iter int, riseA, twistDeg, cc float64) error {
	if w == nil {
		return nil
	}
	_, err := fmt.Fprintf(w, "%d %.6f %.6f %.6f\n", iter, riseA, twistDeg, cc)
	return err
}
