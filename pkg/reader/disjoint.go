package reader

import (
	"olapscan/pkg/common"
	"olapscan/pkg/dataio"
)

// rowsetsNotMonoAscDisjoint reports whether the splits may overlap, that is
// whether they have to go through the merge heap. It answers true whenever
// the key bounds cannot prove a strictly ascending, non-overlapping order.
func rowsetsNotMonoAscDisjoint(splits []dataio.RowsetSplit) bool {
	var (
		preLastKey       []byte
		preKeysTruncated bool
		hasPre           bool
	)
	for _, split := range splits {
		rs := split.Reader.Rowset()
		if rs.NumRows() == 0 {
			continue
		}
		if rs.IsSegmentsOverlapping() {
			return true
		}
		firstKey, ok := rs.FirstKey()
		if !ok {
			return true
		}
		truncated := rs.IsSegmentsKeyBoundsTruncated()
		if hasPre && !common.LhsStrictlyLess(preLastKey, preKeysTruncated, firstKey, truncated) {
			return true
		}
		lastKey, ok := rs.LastKey()
		if !ok {
			return true
		}
		preLastKey, preKeysTruncated, hasPre = lastKey, truncated, true
	}
	return false
}
