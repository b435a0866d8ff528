// Command fitbot runs the training booking bot.
package main

import (
	"log"

	"github.com/m3rciful/fitbot/core/cmd"
	"github.com/m3rciful/fitbot/internal/app"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadCarrier,
		Bootstrap:         app.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
