package service

import (
	"context"
	"strings"

	"blogpage/internal/models"
	"blogpage/internal/repository"
	"blogpage/internal/validation"
)

// AnnouncementService exposes announcements read-only to everyone and
// writable to staff through the admin surface.
type AnnouncementService struct {
	repo    repository.AnnouncementRepository
	isStaff func(ctx context.Context, userID uint) (bool, error)
}

type CreateAnnouncementInput struct {
	ActorID uint   `json:"-"`
	Title   string `json:"title" form:"title" validate:"required,max=50"`
	Context string `json:"context" form:"context" validate:"required"`
}

func NewAnnouncementService(
	repo repository.AnnouncementRepository,
	isStaff func(ctx context.Context, userID uint) (bool, error),
) *AnnouncementService {
	return &AnnouncementService{repo: repo, isStaff: isStaff}
}

// List returns every announcement, newest first.
func (s *AnnouncementService) List(ctx context.Context) ([]models.Announcement, error) {
	return s.repo.List(ctx)
}

func (s *AnnouncementService) Create(ctx context.Context, in CreateAnnouncementInput) (*models.Announcement, error) {
	if err := s.requireStaff(ctx, in.ActorID); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Context = strings.TrimSpace(in.Context)
	if fields := validation.Struct(in); fields != nil {
		return nil, models.NewFieldValidationError(fields)
	}

	a := &models.Announcement{
		Title:    in.Title,
		Context:  in.Context,
		AuthorID: in.ActorID,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AnnouncementService) Delete(ctx context.Context, actorID, id uint) error {
	if err := s.requireStaff(ctx, actorID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *AnnouncementService) requireStaff(ctx context.Context, userID uint) error {
	if s.isStaff == nil {
		return models.NewForbiddenError("Staff access required")
	}
	staff, err := s.isStaff(ctx, userID)
	if err != nil {
		return err
	}
	if !staff {
		return models.NewForbiddenError("Staff access required")
	}
	return nil
}
