package models

import (
	"time"

	"gorm.io/gorm"
)

// Post title limit, in characters.
const PostTitleMaxLen = 100

// Post is a blog entry owned by exactly one user.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:100;not null" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	DatePosted time.Time `gorm:"index;not null" json:"date_posted"`
	AuthorID   uint      `gorm:"index;not null" json:"author_id"`
	Author     User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
}

// BeforeCreate stamps DatePosted with the creation time when unset.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.DatePosted.IsZero() {
		p.DatePosted = time.Now().UTC()
	}
	return nil
}

// OwnerID returns the author of the post.
func (p *Post) OwnerID() uint {
	return p.AuthorID
}
