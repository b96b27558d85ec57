package app

import (
	"context"

	"github.com/dkeye/Trio/internal/core"
	"github.com/dkeye/Trio/internal/domain"
)

// Presence receives membership after every change. It is write-only
// observability: the coordinator never reads it back.
type Presence interface {
	Update(ctx context.Context, id domain.RoomID, members []core.MemberDTO) error
}

type NopPresence struct{}

func (NopPresence) Update(context.Context, domain.RoomID, []core.MemberDTO) error { return nil }
