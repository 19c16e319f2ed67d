package model

import "github.com/google/uuid"

// ensureID assigns a fresh v4 id when the caller did not set one. IDs are
// generated in Go instead of a database default so every dialect behaves
// the same.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
