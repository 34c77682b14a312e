package globals

import "os"

var JwtSecret = []byte(envOr("JWT_SECRET", "your_secret_key"))

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Context keys
type ContextKey string

const UserIDKey ContextKey = "userId"
