package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kms-shield/csp-lib/core/keyspec"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "list stored keys",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  scopeFlag,
				Usage: "machine or user",
				Value: "user",
			},
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "list both scopes",
			},
		},
		Action: runList,
	}
}

func runList(c *cli.Context) error {
	prov, err := newProvider(c)
	if err != nil {
		return err
	}

	scopes := []keyspec.Scope{keyspec.MachineKey, keyspec.UserKey}
	if !c.Bool("all") {
		scope, err := parseScope(c)
		if err != nil {
			return err
		}
		scopes = []keyspec.Scope{scope}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tALGORITHM\tSCOPE\tUSAGE\tPOLICY\tCREATED")
	total := 0
	for _, scope := range scopes {
		infos, err := prov.List(scope)
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				info.Name, info.Algorithm, info.Scope, info.Usage,
				info.ExportPolicy, info.CreatedAt.Format(time.RFC3339))
		}
		total += len(infos)
	}
	if total == 0 {
		fmt.Println("no keys stored")
		return nil
	}
	return w.Flush()
}
