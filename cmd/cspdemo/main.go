package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
)

const (
	storeFlag     = "store"
	masterKeyFlag = "master-key"
	logLevelFlag  = "log-level"
	logFileFlag   = "log-file"
	scopeFlag     = "scope"
)

func main() {
	app := &cli.App{
		Name:  "cspdemo",
		Usage: "software key storage provider demonstration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    storeFlag,
				Aliases: []string{"s"},
				Usage:   "directory holding the key stores",
				Value:   defaultStorePath(),
			},
			&cli.StringFlag{
				Name:  masterKeyFlag,
				Usage: "master key protecting stored material; empty keeps records in plaintext",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "minimum log level",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  logFileFlag,
				Usage: "write logs to a rotated file instead of the console",
			},
		},
		Commands: []*cli.Command{
			demoCommand(),
			listCommand(),
			deleteCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cspdemo"
	}
	return filepath.Join(home, ".cspdemo")
}
