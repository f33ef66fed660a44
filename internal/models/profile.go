package models

import "time"

// DefaultProfileImage is the avatar every profile starts with.
const DefaultProfileImage = "default.png"

// ProfileImageDir is the directory under the media root holding uploaded avatars.
const ProfileImageDir = "profile_pics"

// Profile extends a User one-to-one with an avatar image.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Image     string    `gorm:"size:255;not null;default:'default.png'" json:"image"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImageOrDefault returns the stored avatar path, falling back to the placeholder.
func (p *Profile) ImageOrDefault() string {
	if p == nil || p.Image == "" {
		return DefaultProfileImage
	}
	return p.Image
}
