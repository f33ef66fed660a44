package repository

import (
	"context"

	"blogpage/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnnouncementRepository defines persistence operations for announcements.
type AnnouncementRepository interface {
	List(ctx context.Context) ([]models.Announcement, error)
	GetByID(ctx context.Context, id uint) (*models.Announcement, error)
	Create(ctx context.Context, a *models.Announcement) error
	Delete(ctx context.Context, id uint) error
}

type announcementRepository struct {
	db *gorm.DB
}

// NewAnnouncementRepository returns a new AnnouncementRepository implementation.
func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

// List returns every announcement, newest first.
func (r *announcementRepository) List(ctx context.Context) ([]models.Announcement, error) {
	var out []models.Announcement
	err := readDB(r.db).WithContext(ctx).
		Preload("Author").
		Order(postOrder).
		Find(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *announcementRepository) GetByID(ctx context.Context, id uint) (*models.Announcement, error) {
	var a models.Announcement
	if err := r.db.WithContext(ctx).Preload("Author").First(&a, id).Error; err != nil {
		return nil, lookupError(err, "Announcement", id)
	}
	return &a, nil
}

func (r *announcementRepository) Create(ctx context.Context, a *models.Announcement) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *announcementRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Announcement{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Announcement", id)
	}
	return nil
}
