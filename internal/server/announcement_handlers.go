package server

import (
	"github.com/gofiber/fiber/v2"
)

// Announcements lists every announcement. There is no public write path.
func (s *Server) Announcements(c *fiber.Ctx) error {
	announcements, err := s.announcementService.List(c.UserContext())
	if err != nil {
		return err
	}
	return render(c, fiber.StatusOK, "blog/announcements", fiber.Map{
		"Title":         "Announcements",
		"Announcements": announcements,
	})
}
