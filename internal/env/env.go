package env

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var loadOnce sync.Once

// Load reads a .env file from the working directory, if one exists.
// Variables already present in the process environment win.
func Load(files ...string) error {
	var err error
	loadOnce.Do(func() {
		if len(files) == 0 {
			if _, statErr := os.Stat(".env"); statErr != nil {
				return
			}
		}
		err = godotenv.Load(files...)
	})
	return err
}

// Get returns the value of key and whether it was set.
func Get(key string) (string, bool) {
	_ = Load()
	return lookup(key)
}

// GetDefault returns the value of key, or def when it is unset or empty.
func GetDefault(key, def string) string {
	if v, ok := Get(key); ok && v != "" {
		return v
	}
	return def
}
