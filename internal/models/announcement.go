package models

import (
	"time"

	"gorm.io/gorm"
)

// Announcement title limit, in characters.
const AnnouncementTitleMaxLen = 50

// Announcement is a staff-authored notice. It is read-only to regular users.
type Announcement struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:50;not null" json:"title"`
	Context    string    `gorm:"type:text;not null" json:"context"`
	DatePosted time.Time `gorm:"index;not null" json:"date_posted"`
	AuthorID   uint      `gorm:"index;not null" json:"author_id"`
	Author     User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
}

// BeforeCreate stamps DatePosted with the creation time when unset.
func (a *Announcement) BeforeCreate(_ *gorm.DB) error {
	if a.DatePosted.IsZero() {
		a.DatePosted = time.Now().UTC()
	}
	return nil
}

// OwnerID returns the author of the announcement.
func (a *Announcement) OwnerID() uint {
	return a.AuthorID
}
