package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"mtreta/internal/directory"
	"mtreta/internal/terminal"
)

func linesCommand() *cli.Command {
	return &cli.Command{
		Name:  "lines",
		Usage: "list lines and stations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "stations", Usage: "also list each line's stations"},
			&cli.StringFlag{Name: "directory", Usage: "directory file to read instead of the built-in one", EnvVars: []string{"DIRECTORY_FILE"}},
		},
		Action: func(c *cli.Context) error {
			dir, err := directory.Load(c.String("directory"))
			if err != nil {
				return err
			}
			terminal.PrintLines(os.Stdout, dir.Lines(), c.Bool("stations"))
			return nil
		},
	}
}
