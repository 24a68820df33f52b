package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/KilimcininKorOglu/obtree/internal/config"
)

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "inspect configuration",
	Subcommands: []*cli.Command{
		{
			Name:  "validate",
			Usage: "check the configuration for errors",
			Action: func(cctx *cli.Context) error {
				cfg, err := loadConfig(cctx)
				if err != nil {
					return err
				}
				errs := config.ValidateConfig(cfg)
				if len(errs) > 0 {
					for _, e := range errs {
						fmt.Fprintf(cctx.App.ErrWriter, "  - %v\n", e)
					}
					return cli.Exit(fmt.Sprintf("configuration has %d error(s)", len(errs)), 1)
				}
				fmt.Fprintln(cctx.App.Writer, "configuration is valid")
				return nil
			},
		},
		{
			Name:  "show",
			Usage: "print the effective configuration as YAML",
			Action: func(cctx *cli.Context) error {
				cfg, err := loadConfig(cctx)
				if err != nil {
					return err
				}
				data, err := config.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = cctx.App.Writer.Write(data)
				return err
			},
		},
	},
}
