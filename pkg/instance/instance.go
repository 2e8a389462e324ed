package instance

import "os"

// GetID returns the serving instance identifier for log correlation.
// Heroku-style dynos expose DYNO; anything else can set
// TAPE16_INSTANCE_ID.
func GetID() string {
	if id := os.Getenv("TAPE16_INSTANCE_ID"); id != "" {
		return id
	}
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	return "local"
}
