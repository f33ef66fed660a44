package server

import (
	"time"

	"blogpage/internal/models"
	"blogpage/internal/service"

	"github.com/gofiber/fiber/v2"
)

type adminPostResponse struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	DatePosted time.Time `json:"date_posted"`
	Author     string    `json:"author"`
	AuthorID   uint      `json:"author_id"`
}

type adminPostPage struct {
	Items    []adminPostResponse `json:"items"`
	Page     int                 `json:"page"`
	NumPages int                 `json:"num_pages"`
	Total    int64               `json:"total"`
}

// AdminListAnnouncements handles GET /admin/api/announcements
func (s *Server) AdminListAnnouncements(c *fiber.Ctx) error {
	announcements, err := s.announcementService.List(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	return c.JSON(announcements)
}

// AdminCreateAnnouncement handles POST /admin/api/announcements
func (s *Server) AdminCreateAnnouncement(c *fiber.Ctx) error {
	var in service.CreateAnnouncementInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	in.ActorID = actorID(c)

	a, err := s.announcementService.Create(c.UserContext(), in)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

// AdminDeleteAnnouncement handles DELETE /admin/api/announcements/:id
func (s *Server) AdminDeleteAnnouncement(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "Announcement")
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	if err := s.announcementService.Delete(c.UserContext(), actorID(c), id); err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AdminListPosts handles GET /admin/api/posts?page=N
func (s *Server) AdminListPosts(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(), c.Query("page"))
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	out := adminPostPage{
		Items:    make([]adminPostResponse, 0, len(page.Items)),
		Page:     page.Number,
		NumPages: page.NumPages,
		Total:    page.Total,
	}
	for _, p := range page.Items {
		out.Items = append(out.Items, adminPostResponse{
			ID:         p.ID,
			Title:      p.Title,
			Content:    p.Content,
			DatePosted: p.DatePosted,
			Author:     p.Author.Username,
			AuthorID:   p.AuthorID,
		})
	}
	return c.JSON(out)
}

// AdminListUsers handles GET /admin/api/users?limit=&offset=
func (s *Server) AdminListUsers(c *fiber.Ctx) error {
	p := parsePagination(c, 50)
	users, err := s.userService.ListUsers(c.UserContext(), p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	return c.JSON(users)
}
