package server

import (
	"errors"
	"io"
	"mime/multipart"

	"blogpage/internal/models"
	"blogpage/internal/observability"
	"blogpage/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

func (s *Server) RegisterForm(c *fiber.Ctx) error {
	return renderRegister(c, fiber.StatusOK, service.RegisterInput{}, nil)
}

// Register creates an account and sends the new user to the login page.
func (s *Server) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return renderRegister(c, fiber.StatusUnprocessableEntity, in,
			map[string]string{"__all__": "Invalid form submission"})
	}

	user, err := s.userService.Register(c.UserContext(), in)
	if fields := formErrors(err); fields != nil {
		return renderRegister(c, fiber.StatusUnprocessableEntity, in, fields)
	}
	if err != nil {
		return err
	}

	setFlash(c, "success", "Account created successfully for "+user.Username)
	return c.Redirect("/login/", fiber.StatusFound)
}

func renderRegister(c *fiber.Ctx, status int, form service.RegisterInput, errs map[string]string) error {
	// Passwords are never echoed back.
	form.Password1, form.Password2 = "", ""
	return render(c, status, "users/register", fiber.Map{
		"Title":  "Register",
		"Form":   form,
		"Errors": errs,
	})
}

func (s *Server) LoginForm(c *fiber.Ctx) error {
	if currentUser(c) != nil {
		return c.Redirect(safeNext(c.Query("next")), fiber.StatusFound)
	}
	return renderLogin(c, fiber.StatusOK, loginForm{Next: c.Query("next")}, "")
}

// Login checks credentials, sets the session cookie and follows ?next= when it is local.
func (s *Server) Login(c *fiber.Ctx) error {
	var form loginForm
	if err := c.BodyParser(&form); err != nil {
		return renderLogin(c, fiber.StatusUnprocessableEntity, form, "Invalid form submission")
	}
	if form.Next == "" {
		form.Next = c.Query("next")
	}

	user, err := s.userService.Authenticate(c.UserContext(), form.Username, form.Password)
	if err != nil {
		if models.ErrorCode(err) == models.CodeUnauthorized {
			var appErr *models.AppError
			errors.As(err, &appErr)
			return renderLogin(c, fiber.StatusUnauthorized, form, appErr.Message)
		}
		return err
	}

	if err := s.login(c, user); err != nil {
		return err
	}
	return c.Redirect(safeNext(form.Next), fiber.StatusFound)
}

func renderLogin(c *fiber.Ctx, status int, form loginForm, message string) error {
	form.Password = ""
	errs := map[string]string{}
	if message != "" {
		errs["__all__"] = message
	}
	return render(c, status, "users/login", fiber.Map{
		"Title":  "Login",
		"Form":   form,
		"Errors": errs,
	})
}

// LogoutUser revokes the current session and clears the cookie.
func (s *Server) LogoutUser(c *fiber.Ctx) error {
	s.revokeSession(c)
	clearSessionCookie(c)
	observability.AuthEvents.WithLabelValues("logout").Inc()
	return c.Redirect("/logout_view/", fiber.StatusFound)
}

func (s *Server) LogoutView(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "users/logout", fiber.Map{"Title": "Logged out"})
}

func (s *Server) ProfileForm(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), actorID(c))
	if err != nil {
		return err
	}
	return renderProfile(c, fiber.StatusOK, user, service.UpdateProfileInput{
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, nil)
}

// UpdateProfile saves the account fields and an optional avatar upload.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var in service.UpdateProfileInput
	if err := c.BodyParser(&in); err != nil {
		return s.rerenderProfile(c, in, map[string]string{"__all__": "Invalid form submission"})
	}
	in.ActorID = actorID(c)

	upload, err := avatarUpload(c)
	if err != nil {
		return s.rerenderProfile(c, in, map[string]string{"image": "The submitted file could not be read."})
	}
	in.Image = upload

	user, err := s.userService.UpdateProfile(c.UserContext(), in)
	if fields := formErrors(err); fields != nil {
		return s.rerenderProfile(c, in, fields)
	}
	if err != nil {
		return err
	}

	setFlash(c, "success", "User updated for "+user.Username)
	return c.Redirect("/profile/", fiber.StatusFound)
}

func (s *Server) rerenderProfile(c *fiber.Ctx, form service.UpdateProfileInput, errs map[string]string) error {
	user, err := s.userService.GetProfile(c.UserContext(), actorID(c))
	if err != nil {
		return err
	}
	form.Image = nil
	return renderProfile(c, fiber.StatusUnprocessableEntity, user, form, errs)
}

func renderProfile(c *fiber.Ctx, status int, user *models.User, form service.UpdateProfileInput, errs map[string]string) error {
	return render(c, status, "users/profile", fiber.Map{
		"Title":   "Profile",
		"Account": user,
		"Form":    form,
		"Errors":  errs,
	})
}

// avatarUpload reads the optional "image" file of a multipart form.
func avatarUpload(c *fiber.Ctx) (*service.AvatarUpload, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm) {
			return nil, nil
		}
		return nil, err
	}
	if fh.Size == 0 {
		return nil, nil
	}
	content, err := readFormFile(fh)
	if err != nil {
		return nil, err
	}
	return &service.AvatarUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) ResetPasswordForm(c *fiber.Ctx) error {
	return renderResetPassword(c, fiber.StatusOK, nil)
}

// ResetPassword changes the password and keeps the user signed in with a fresh session.
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var in service.ChangePasswordInput
	if err := c.BodyParser(&in); err != nil {
		return renderResetPassword(c, fiber.StatusUnprocessableEntity,
			map[string]string{"__all__": "Invalid form submission"})
	}
	in.ActorID = actorID(c)

	user, err := s.userService.ChangePassword(c.UserContext(), in)
	if fields := formErrors(err); fields != nil {
		return renderResetPassword(c, fiber.StatusUnprocessableEntity, fields)
	}
	if err != nil {
		return err
	}

	s.revokeSession(c)
	if err := s.login(c, user); err != nil {
		return err
	}
	setFlash(c, "success", "Password changed successfully")
	return c.Redirect("/", fiber.StatusFound)
}

func renderResetPassword(c *fiber.Ctx, status int, errs map[string]string) error {
	return render(c, status, "users/resetpassword", fiber.Map{
		"Title":  "Change password",
		"Errors": errs,
	})
}
