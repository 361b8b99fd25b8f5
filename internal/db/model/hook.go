package model

import "time"

const HookRegistrationCollection = "hook_registrations"

// HookRegistrationDocument records a registered hook so the pipeline can be
// rebuilt on restart and audited off-line.
type HookRegistrationDocument struct {
	HookID       string    `bson:"_id"`
	AppliesTo    uint8     `bson:"applies_to"`
	Order        int       `bson:"order"`
	RegisteredBy string    `bson:"registered_by"`
	RegisteredAt time.Time `bson:"registered_at"`
}
