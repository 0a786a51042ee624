package reader

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInternal marks failures that abort the scan and must not be
	// retried: unresolvable schema or aggregates and broken invariants.
	ErrInternal = errors.New("olapscan: internal error")
	// ErrCancelled marks a scan stopped by its context. The context error
	// stays reachable through errors.Is.
	ErrCancelled = errors.New("olapscan: scan cancelled")
)

func internalErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInternal)
}

func checkCancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Mark(errors.Wrap(err, "scan"), ErrCancelled)
	}
	return nil
}

// markCancel tags context errors surfacing from rowset readers.
func markCancel(err error) error {
	if err == nil || errors.Is(err, ErrCancelled) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Mark(err, ErrCancelled)
	}
	return err
}
