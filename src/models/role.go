package models

import "crs/src/types"

// UserRole binds an identity-provider subject to an authorization role.
// Identity itself lives with the external auth collaborator; role claims
// from tokens are ignored in favor of this table.
type UserRole struct {
	ID     uint       `gorm:"primarykey" json:"id"`
	UserID string     `gorm:"uniqueIndex" json:"user_id"`
	Role   types.Role `gorm:"default:'user'" json:"role"`

	types.Timestamps
}
