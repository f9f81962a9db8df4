package models

import (
	"github.com/google/uuid"
)

// ensureID assigns a client-side UUID so inserts behave the same on postgres
// (where the column also has a gen_random_uuid() default) and sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
