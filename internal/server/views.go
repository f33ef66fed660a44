package server

import (
	"time"

	"blogpage/internal/models"
)

const dateLayout = "January 2, 2006"

func templateFuncs() map[string]interface{} {
	return map[string]interface{}{
		"avatar": avatarURL,
		"date": func(t time.Time) string {
			return t.Format(dateLayout)
		},
	}
}

// avatarURL is the public URL of a profile's avatar. A nil profile shows the placeholder.
func avatarURL(p *models.Profile) string {
	return "/media/" + p.ImageOrDefault()
}
