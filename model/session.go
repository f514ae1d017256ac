package model

import (
	"hash/fnv"

	"github.com/google/uuid"

	"github.com/cshekharsharma/go-json-crdt/clock"
)

// NewModelWithRandomSID creates an empty model whose local session id is
// derived from a fresh random UUID, folded down to a uint64 with FNV-1a
// and raised above clock.UserSIDFloor so it can never collide with the
// reserved system/server sessions.
func NewModelWithRandomSID() *Model {
	return NewModel(randomSID())
}

func randomSID() uint64 {
	id := uuid.New()
	h := fnv.New64a()
	h.Write(id[:])
	sid := h.Sum64()
	if sid < clock.UserSIDFloor {
		sid += clock.UserSIDFloor
	}
	return sid
}
