package service

import (
	"context"
	"strings"

	"blogpage/internal/middleware"
	"blogpage/internal/models"
	"blogpage/internal/observability"
	"blogpage/internal/repository"
	"blogpage/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	usernameTakenMsg = "A user with that username already exists."
	invalidImageMsg  = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
)

// UserService covers registration, credentials and profile edits.
type UserService struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	images      *ImageService
	bcryptCost  int
}

type RegisterInput struct {
	Username  string `form:"username"`
	Email     string `form:"email"`
	Password1 string `form:"password1"`
	Password2 string `form:"password2"`
}

type UpdateProfileInput struct {
	ActorID   uint          `form:"-"`
	Username  string        `form:"username"`
	Email     string        `form:"email"`
	FirstName string        `form:"first_name" validate:"required,max=30"`
	LastName  string        `form:"last_name" validate:"required,max=30"`
	Image     *AvatarUpload `form:"-"`
}

type ChangePasswordInput struct {
	ActorID      uint
	OldPassword  string `form:"old_password"`
	NewPassword1 string `form:"new_password1"`
	NewPassword2 string `form:"new_password2"`
}

// NewUserService wires the account rules. bcryptCost <= 0 selects bcrypt.DefaultCost.
func NewUserService(
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	images *ImageService,
	bcryptCost int,
) *UserService {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		images:      images,
		bcryptCost:  bcryptCost,
	}
}

// Register creates a user together with its default profile.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (user *models.User, err error) {
	ctx, finish := observability.StartServiceSpan(ctx, "UserService", "Register")
	defer func() { finish(err) }()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	fields := map[string]string{}
	if err := validation.ValidateUsername(in.Username); err != nil {
		fields["username"] = err.Error()
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		fields["email"] = err.Error()
	}
	fields = validation.Merge(fields, validation.ValidatePasswordPair(in.Password1, in.Password2, in.Username))

	if _, bad := fields["username"]; !bad {
		taken, err := s.userRepo.UsernameTaken(ctx, in.Username, 0)
		if err != nil {
			return nil, err
		}
		if taken {
			fields["username"] = usernameTakenMsg
		}
	}
	if len(fields) > 0 {
		return nil, models.NewFieldValidationError(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password1), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user = &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
	}
	if err := s.userRepo.CreateWithProfile(ctx, user, &models.Profile{Image: models.DefaultProfileImage}); err != nil {
		if models.ErrorCode(err) == models.CodeConflict {
			return nil, models.NewFieldValidationError(map[string]string{"username": usernameTakenMsg})
		}
		return nil, err
	}
	observability.AuthEvents.WithLabelValues("register").Inc()
	return user, nil
}

// Authenticate checks a username/password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	invalid := models.NewUnauthorizedError("Please enter a correct username and password. Note that both fields may be case-sensitive.")

	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if models.IsNotFound(err) {
			observability.AuthEvents.WithLabelValues("login_failed").Inc()
			return nil, invalid
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		observability.AuthEvents.WithLabelValues("login_failed").Inc()
		return nil, invalid
	}
	observability.AuthEvents.WithLabelValues("login").Inc()
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetProfile loads the user with its profile, creating the profile when missing.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.ensureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Profile = profile
	return user, nil
}

func (s *UserService) ensureProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !models.IsNotFound(err) {
		return nil, err
	}
	profile = &models.Profile{UserID: userID, Image: models.DefaultProfileImage}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile saves account fields and the optional new avatar. Every
// successful save normalizes the avatar file before returning.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (user *models.User, err error) {
	ctx, finish := observability.StartServiceSpan(ctx, "UserService", "UpdateProfile")
	defer func() { finish(err) }()

	user, err = s.GetProfile(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	fields := validation.Struct(in)
	if fields == nil {
		fields = map[string]string{}
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		fields["username"] = err.Error()
	} else {
		taken, err := s.userRepo.UsernameTaken(ctx, in.Username, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			fields["username"] = usernameTakenMsg
		}
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		fields["email"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, models.NewFieldValidationError(fields)
	}

	// The avatar is stored and normalized before any row is written, so a
	// rejected image leaves the account untouched.
	var newImage string
	if in.Image != nil && len(in.Image.Content) > 0 {
		newImage, err = s.storeNormalizedAvatar(ctx, *in.Image)
		if err != nil {
			return nil, err
		}
	} else if _, err := s.images.NormalizeAvatar(ctx, user.Profile.ImageOrDefault()); err != nil {
		if !models.IsValidation(err) {
			return nil, err
		}
		middleware.Logger.WarnContext(ctx, "stored avatar unreadable, leaving it in place",
			"user_id", user.ID, "path", user.Profile.ImageOrDefault())
	}

	oldImage := user.Profile.Image
	user.Username = in.Username
	user.Email = in.Email
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	if newImage != "" {
		user.Profile.Image = newImage
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.images.RemoveMedia(newImage)
		if models.ErrorCode(err) == models.CodeConflict {
			return nil, models.NewFieldValidationError(map[string]string{"username": usernameTakenMsg})
		}
		return nil, err
	}

	if newImage != "" && oldImage != newImage {
		s.images.RemoveMedia(oldImage)
	}
	return user, nil
}

// storeNormalizedAvatar writes the upload and scales it to fit AvatarMaxSize.
// The file is removed again when either step fails.
func (s *UserService) storeNormalizedAvatar(ctx context.Context, upload AvatarUpload) (string, error) {
	rel, err := s.images.StoreAvatar(ctx, upload)
	if err != nil {
		if models.IsValidation(err) {
			return "", models.NewFieldValidationError(map[string]string{"image": err.Error()})
		}
		return "", err
	}
	if _, err := s.images.NormalizeAvatar(ctx, rel); err != nil {
		s.images.RemoveMedia(rel)
		if models.IsValidation(err) {
			return "", models.NewFieldValidationError(map[string]string{"image": invalidImageMsg})
		}
		return "", err
	}
	return rel, nil
}

// ChangePassword verifies the old password and stores a new hash.
func (s *UserService) ChangePassword(ctx context.Context, in ChangePasswordInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.OldPassword)) != nil {
		fields["old_password"] = "Your old password was entered incorrectly. Please enter it again."
	}
	pair := validation.ValidatePasswordPair(in.NewPassword1, in.NewPassword2, user.Username)
	if msg, ok := pair["password1"]; ok {
		fields["new_password1"] = msg
	}
	if msg, ok := pair["password2"]; ok {
		fields["new_password2"] = msg
	}
	if len(fields) > 0 {
		return nil, models.NewFieldValidationError(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword1), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return nil, err
	}
	user.Password = string(hash)
	observability.AuthEvents.WithLabelValues("password_change").Inc()
	return user, nil
}

// IsStaff reports whether the user may use the admin surface.
func (s *UserService) IsStaff(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if models.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return user.IsStaff, nil
}

func (s *UserService) SetStaff(ctx context.Context, userID uint, staff bool) error {
	return s.userRepo.SetStaff(ctx, userID, staff)
}

func (s *UserService) ListStaff(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListStaff(ctx)
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

// DeleteUser removes the account along with its profile, posts and announcements.
func (s *UserService) DeleteUser(ctx context.Context, userID uint) error {
	return s.userRepo.Delete(ctx, userID)
}
