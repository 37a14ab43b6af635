package main

import "os"

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

const appName = "kicad-gtm"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
