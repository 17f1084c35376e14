package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "mtreta",
		Usage: "Live MTR train arrival boards",

		Commands: []*cli.Command{
			serveCommand(),
			watchCommand(),
			linesCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
