package cli

import "os"

func envOrEmpty(name string) string {
	return os.Getenv(name)
}
