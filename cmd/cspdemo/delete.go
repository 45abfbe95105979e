package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "delete a stored key",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  scopeFlag,
				Usage: "machine or user",
				Value: "user",
			},
		},
		Action: runDelete,
	}
}

func runDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("cspdemo: delete takes exactly one key name")
	}
	scope, err := parseScope(c)
	if err != nil {
		return err
	}
	prov, err := newProvider(c)
	if err != nil {
		return err
	}
	name := c.Args().First()
	if err := prov.Delete(name, scope); err != nil {
		return errors.WithMessagef(err, "cspdemo: failed to delete key %q", name)
	}
	fmt.Printf("deleted %s (%s)\n", name, scope)
	return nil
}
