package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "test_user123", false},
		{"Allowed Symbols", "a.b+c-d@e", false},
		{"Unicode Letters", "Åsa", false},
		{"Exactly Max Length", strings.Repeat("u", UsernameMaxLen), false},
		{"Empty", "", true},
		{"Too Long", strings.Repeat("u", UsernameMaxLen+1), true},
		{"Space", "user name", true},
		{"Slash", "user/name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "test@example.com", false},
		{"Empty", "", true},
		{"Invalid Format", "not-an-email", true},
		{"Missing Domain", "user@", true},
		{"Multiple At Symbols", "user@@example.com", true},
		{"Too Long", strings.Repeat("a", 64) + "@" + strings.Repeat("b", 190) + ".com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		username string
		wantErr  string
	}{
		{"Valid", "abcabc12", "alice", ""},
		{"Exactly Max Length", strings.Repeat("x", PasswordMaxLen-1) + "1", "alice", ""},
		{"Too Short", "abc12", "alice", "too short"},
		{"Too Long", strings.Repeat("x", PasswordMaxLen+1), "alice", "too long"},
		{"Numeric", "1234509876", "alice", "entirely numeric"},
		{"Common", "Password1", "alice", "too common"},
		{"Same As Username", "Longusername", "longUsername", "too similar"},
		{"Unknown Username", "longusername", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.username)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidatePasswordPair(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ValidatePasswordPair("abcabc12", "abcabc12", "alice"))

	fields := ValidatePasswordPair("", "", "alice")
	assert.Equal(t, "This field is required.", fields["password1"])
	assert.Equal(t, "This field is required.", fields["password2"])

	fields = ValidatePasswordPair("abcabc12", "abcabc13", "alice")
	assert.Equal(t, "The two password fields didn't match.", fields["password2"])

	fields = ValidatePasswordPair("12345678901", "12345678901", "alice")
	assert.Contains(t, fields["password2"], "entirely numeric")
}

func TestStruct(t *testing.T) {
	t.Parallel()

	type postForm struct {
		Title   string `form:"title" validate:"required,max=5"`
		Content string `form:"content" validate:"required"`
		Email   string `form:"email" validate:"omitempty,email"`
	}

	assert.Nil(t, Struct(postForm{Title: "Hi", Content: "world"}))

	fields := Struct(postForm{Title: "Héllo!", Email: "nope"})
	assert.Equal(t, "Ensure this value has at most 5 characters (it has 6).", fields["title"])
	assert.Equal(t, "This field is required.", fields["content"])
	assert.Equal(t, "Enter a valid email address.", fields["email"])
}

func TestMerge(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Merge(nil, nil))
	got := Merge(map[string]string{"a": "first"}, map[string]string{"a": "second", "b": "other"})
	assert.Equal(t, map[string]string{"a": "first", "b": "other"}, got)
}
