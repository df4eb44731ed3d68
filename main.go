package main

import (
	"github.com/joho/godotenv"

	"github.com/dongsuo/ask-rss/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()
	cmd.SetVersionInfo(version, commit, date)
	cmd.Execute()
}
