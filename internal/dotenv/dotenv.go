package dotenv

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Load reads a .env file from the working directory if one exists. A missing
// file is not an error; credentials may come from flags or real env vars.
func Load() error {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
