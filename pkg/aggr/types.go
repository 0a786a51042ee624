package aggr

import (
	"github.com/cockroachdb/errors"

	"olapscan/pkg/common"
	"olapscan/pkg/containers"
)

var (
	ErrFunctionNotFound = errors.New("olapscan: aggregate function not found")
	ErrBadState         = errors.New("olapscan: bad aggregate value")
)

// State is owned by the Function that created it. Callers only hand it
// back.
type State interface{}

type Function interface {
	Name() string
	ReturnType() containers.Type
	CreateState() State
	// AddBatchRange folds rows [begin, end) of col into state. hasNull is
	// false only if none of the first end rows of col is null. Scratch bytes
	// come from arena and must stay valid until the state is reset.
	AddBatchRange(state State, begin, end int, col containers.Vector, arena *common.Arena, hasNull bool) error
	// InsertResultInto appends the finalized value to dst.
	InsertResultInto(state State, dst containers.Vector) error
	Reset(state State)
	Destroy(state State)
}
