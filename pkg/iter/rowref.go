package iter

import (
	"fmt"

	"olapscan/pkg/containers"
)

// RowRef points at one row of a block owned by a child iterator. It is only
// valid until that child refills its block.
type RowRef struct {
	Block  *containers.Batch
	RowPos int
	// IsSame is set when the row has the same key as the previous row.
	IsSame bool
}

func (ref *RowRef) IsValid() bool {
	return ref.Block != nil && ref.RowPos >= 0 && ref.RowPos < ref.Block.Length()
}

// IsLastInBlock reports whether advancing past this row refills its block.
func (ref *RowRef) IsLastInBlock() bool {
	return ref.RowPos+1 == ref.Block.Length()
}

func (ref *RowRef) Reset() {
	ref.Block = nil
	ref.RowPos = -1
	ref.IsSame = false
}

func (ref *RowRef) String() string {
	if ref.Block == nil {
		return "RowRef<nil>"
	}
	return fmt.Sprintf("RowRef<%p:%d,same=%v>", ref.Block, ref.RowPos, ref.IsSame)
}
