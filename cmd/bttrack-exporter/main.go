package main

import (
	"os"
)

func main() {
	c := &command{}

	rootCmd := c.Cmd()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
