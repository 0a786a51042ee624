package containers

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/cockroachdb/errors"
)

// FilterBlock keeps the rows whose UINT8 filter column filterAttr is
// non-zero, then drops the filter column itself. Relative order of the kept
// rows is preserved.
func FilterBlock(bat *Batch, filterAttr string) (dropped int, err error) {
	vec := bat.GetVectorByName(filterAttr)
	if vec == nil {
		return 0, errors.Wrapf(ErrNotFound, "filter column %s", filterAttr)
	}
	if vec.GetType().Oid != T_uint8 {
		return 0, errors.Wrapf(ErrTypeMismatch, "filter column %s is %s", filterAttr, vec.GetType())
	}
	if _, err = bat.RemoveVector(filterAttr); err != nil {
		return
	}
	deletes := roaring.New()
	for i, keep := range Values[uint8](vec) {
		if keep == 0 || vec.IsNull(i) {
			deletes.Add(uint32(i))
		}
	}
	if deletes.IsEmpty() {
		return
	}
	bat.Compact(deletes)
	dropped = int(deletes.GetCardinality())
	return
}
