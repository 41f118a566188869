package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"corevm/internal/vm"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "assemble and execute a .casm program",
	ArgsUsage: "FILE.casm",
	Flags:     commonFlags,
	Action: func(ctx context.Context, cmd *cli.Command) error {
		path := cmd.Args().First()
		if path == "" {
			return fmt.Errorf("usage: corevm run FILE.casm")
		}

		img, err := loadImage(path)
		if err != nil {
			return err
		}

		opts, err := vmOptions(ctx, cmd)
		if err != nil {
			return err
		}

		machine := vm.New(img, opts...)
		result, err := machine.Run()
		if err != nil {
			return fmt.Errorf("runtime error: %w", err)
		}
		fmt.Println(result.String())
		return nil
	},
}
