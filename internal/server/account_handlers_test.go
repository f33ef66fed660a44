package server

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"blogpage/internal/models"
	"blogpage/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLogin_FollowsLocalNext(t *testing.T) {
	env := newTestEnv(t)
	env.fx.User("alice")

	resp := env.do(t, formRequest(http.MethodPost, "/login/", url.Values{
		"username": {"alice"},
		"password": {testutil.Password("alice")},
		"next":     {"/post/new/"},
	}, nil))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/post/new/", resp.Header.Get("Location"))

	cookie := sessionFromResponse(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	resp = env.do(t, getRequest("/post/new/", cookie))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestLogin_RejectsOffsiteNext(t *testing.T) {
	env := newTestEnv(t)
	env.fx.User("alice")

	for _, next := range []string{"//evil.example/", "https://evil.example/", "javascript:alert(1)"} {
		resp := env.do(t, formRequest(http.MethodPost, "/login/", url.Values{
			"username": {"alice"},
			"password": {testutil.Password("alice")},
			"next":     {next},
		}, nil))
		require.Equal(t, fiber.StatusFound, resp.StatusCode, next)
		assert.Equal(t, "/", resp.Header.Get("Location"), next)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.fx.User("alice")

	resp := env.do(t, formRequest(http.MethodPost, "/login/", url.Values{
		"username": {"alice"},
		"password": {"wrong-password"},
	}, nil))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Please enter a correct username and password.")
	assert.Nil(t, sessionFromResponse(resp))
}

func TestLoginForm_CarriesNext(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, getRequest("/login/?next=%2Fprofile%2F", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `name="next" value="/profile/"`)
}

func TestLogout_RevokesSession(t *testing.T) {
	env := newTestEnv(t)
	alice := env.fx.User("alice")
	cookie := env.session(t, alice)

	resp := env.do(t, getRequest("/post/new/", cookie))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = env.do(t, getRequest("/logout_user/", cookie))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/logout_view/", resp.Header.Get("Location"))

	claims, err := env.srv.parseToken(cookie.Value)
	require.NoError(t, err)
	assert.True(t, env.mr.Exists("blacklist:"+claims.JTI))

	// The old cookie no longer authenticates.
	resp = env.do(t, getRequest("/post/new/", cookie))
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/login/"))

	resp = env.do(t, getRequest("/logout_view/", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "logged out")
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, formRequest(http.MethodPost, "/register/", url.Values{
		"username":  {"carol"},
		"email":     {"carol@example.com"},
		"password1": {"s3cret-enough"},
		"password2": {"s3cret-enough"},
	}, nil))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login/", resp.Header.Get("Location"))

	var user models.User
	require.NoError(t, env.fx.DB.Where("username = ?", "carol").First(&user).Error)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("s3cret-enough")))

	var profile models.Profile
	require.NoError(t, env.fx.DB.Where("user_id = ?", user.ID).First(&profile).Error)
	assert.Equal(t, models.DefaultProfileImage, profile.Image)

	// The flash set on redirect shows once on the login page.
	var flash *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == flashCookie {
			flash = c
		}
	}
	require.NotNil(t, flash)
	resp = env.do(t, getRequest("/login/", flash))
	assert.Contains(t, readBody(t, resp), "Account created successfully for carol")
}

func TestRegister_RejectsInvalidForm(t *testing.T) {
	env := newTestEnv(t)
	env.fx.User("alice")

	tests := []struct {
		name   string
		values url.Values
		want   string
	}{
		{
			name:   "Taken Username Any Case",
			values: url.Values{"username": {"ALICE"}, "email": {"a@example.com"}, "password1": {"s3cret-enough"}, "password2": {"s3cret-enough"}},
			want:   "A user with that username already exists.",
		},
		{
			name:   "Bad Email",
			values: url.Values{"username": {"dave"}, "email": {"nope"}, "password1": {"s3cret-enough"}, "password2": {"s3cret-enough"}},
			want:   "Enter a valid email address.",
		},
		{
			name:   "Short Password",
			values: url.Values{"username": {"dave"}, "email": {"d@example.com"}, "password1": {"short"}, "password2": {"short"}},
			want:   "This password is too short.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, formRequest(http.MethodPost, "/register/", tt.values, nil))
			assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
			assert.Contains(t, readBody(t, resp), tt.want)
		})
	}

	var n int64
	env.fx.DB.Model(&models.User{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t)
	alice := env.fx.User("alice")
	cookie := env.session(t, alice)

	resp := env.do(t, formRequest(http.MethodPost, "/resetpassword/", url.Values{
		"old_password":  {"not-the-password"},
		"new_password1": {"brand-new-pass-1"},
		"new_password2": {"brand-new-pass-1"},
	}, cookie))
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.do(t, formRequest(http.MethodPost, "/resetpassword/", url.Values{
		"old_password":  {testutil.Password("alice")},
		"new_password1": {"brand-new-pass-1"},
		"new_password2": {"brand-new-pass-1"},
	}, cookie))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	fresh := sessionFromResponse(resp)
	require.NotNil(t, fresh, "the user stays signed in with a new session")
	assert.NotEqual(t, cookie.Value, fresh.Value)

	resp = env.do(t, getRequest("/profile/", fresh))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var user models.User
	require.NoError(t, env.fx.DB.First(&user, alice.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("brand-new-pass-1")))
}

func TestProfileForm_CreatesMissingProfile(t *testing.T) {
	env := newTestEnv(t)
	alice := env.fx.User("alice")
	require.NoError(t, env.fx.DB.Where("user_id = ?", alice.ID).Delete(&models.Profile{}).Error)

	resp := env.do(t, getRequest("/profile/", env.session(t, alice)))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "/media/"+models.DefaultProfileImage)

	var n int64
	env.fx.DB.Model(&models.Profile{}).Where("user_id = ?", alice.ID).Count(&n)
	assert.Equal(t, int64(1), n)
}
