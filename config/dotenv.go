package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// EnvFileEnv names a dotenv file merged into the environment before loading.
const EnvFileEnv = "TRAVELKIT_ENV_FILE"

// LoadEnvFile merges KEY=VALUE pairs from path into the process environment.
// Variables that are already set keep their value.
func LoadEnvFile(path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	for k, v := range vars {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}
