package server

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"blogpage/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	flashCookie        = "flash"
	maxPaginationLimit = 100
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter as a positive uint. Anything else cannot
// name a row, so it is reported as NotFound.
func parseID(c *fiber.Ctx, param, resource string) (uint, error) {
	raw := c.Params(param)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, models.NewNotFoundError(resource, raw)
	}
	return uint(id), nil
}

// flashMessage is a one-shot notice shown on the next rendered page.
type flashMessage struct {
	Kind    string
	Message string
}

func setFlash(c *fiber.Ctx, kind, message string) {
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + ":" + message),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(5 * time.Minute),
	})
}

// popFlash reads and clears the flash cookie.
func popFlash(c *fiber.Ctx) *flashMessage {
	raw := c.Cookies(flashCookie)
	if raw == "" {
		return nil
	}
	c.ClearCookie(flashCookie)

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil
	}
	kind, message, ok := strings.Cut(decoded, ":")
	if !ok || message == "" {
		return nil
	}
	return &flashMessage{Kind: kind, Message: message}
}

// safeNext returns target when it is a local absolute path, else "/".
func safeNext(target string) string {
	target = strings.TrimSpace(target)
	if target == "" || !strings.HasPrefix(target, "/") {
		return "/"
	}
	if strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return "/"
	}
	if u, err := url.Parse(target); err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return target
}

// loginURL builds the redirect target for an anonymous visitor of next.
func loginURL(next string) string {
	return "/login/?next=" + url.QueryEscape(next)
}

// viewData merges the per-request values every layout needs into data.
func viewData(c *fiber.Ctx, data fiber.Map) fiber.Map {
	if data == nil {
		data = fiber.Map{}
	}
	data["User"] = currentUser(c)
	if _, ok := data["Flash"]; !ok {
		data["Flash"] = popFlash(c)
	}
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = map[string]string{}
	}
	data["Path"] = c.Path()
	return data
}

// render writes a page through the base layout.
func render(c *fiber.Ctx, status int, view string, data fiber.Map) error {
	return c.Status(status).Render(view, viewData(c, data))
}

// formErrors returns the per-field messages of a validation error, or nil when
// err is some other failure. Messages without a field land under "__all__".
func formErrors(err error) map[string]string {
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != models.CodeValidation {
		return nil
	}
	if len(appErr.Fields) > 0 {
		return appErr.Fields
	}
	return map[string]string{"__all__": appErr.Message}
}

// wantsJSON reports whether errors for this request are answered as JSON.
func wantsJSON(c *fiber.Ctx) bool {
	path := c.Path()
	return strings.HasPrefix(path, "/admin/api") || strings.HasPrefix(path, "/health")
}
