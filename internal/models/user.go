package models

import "time"

// User represents a field worker account stored on the device.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username" gorm:"uniqueIndex;type:varchar(50);not null" validate:"required,max=50"`
	Password  string    `json:"-" gorm:"type:varchar(100);not null"` // bcrypt hash, never serialized
	FullName  *string   `json:"full_name,omitempty" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	Email     *string   `json:"email,omitempty" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime:false"`
}

// DisplayName returns the full name, falling back to the username.
func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Username
}
