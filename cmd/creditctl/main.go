package main

import (
	"os"

	"github.com/Bukachka23/image-backend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
