package server

import (
	"testing"

	"blogpage/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSafeNext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/post/new/", "/post/new/"},
		{"/allposts/alice/?page=2", "/allposts/alice/?page=2"},
		{"//evil.example/", "/"},
		{`/\evil.example`, "/"},
		{"https://evil.example/", "/"},
		{"post/new/", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeNext(tt.in), tt.in)
	}
}

func TestFormErrors(t *testing.T) {
	fields := map[string]string{"title": "This field is required."}
	assert.Equal(t, fields, formErrors(models.NewFieldValidationError(fields)))
	assert.Equal(t, map[string]string{"__all__": "bad"}, formErrors(models.NewValidationError("bad")))
	assert.Nil(t, formErrors(models.NewForbiddenError("no")))
	assert.Nil(t, formErrors(nil))
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login/?next=%2Fpost%2F3%2Fupdate%2F", loginURL("/post/3/update/"))
}

func TestAvatarURL(t *testing.T) {
	assert.Equal(t, "/media/default.png", avatarURL(nil))
	assert.Equal(t, "/media/profile_pics/a.png", avatarURL(&models.Profile{Image: "profile_pics/a.png"}))
}
