package store

import (
	"context"

	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

// CodeStore keeps at most one pending code per subject.
type CodeStore interface {
	// Put stores code, replacing whatever was stored for the same subject.
	Put(ctx context.Context, code entity.PendingCode) error
	// Get returns the stored code or ErrNotFound.
	Get(ctx context.Context, subject string) (*entity.PendingCode, error)
	// Delete removes the code for subject; deleting a missing code is not an error.
	Delete(ctx context.Context, subject string) error
}
