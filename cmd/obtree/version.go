package main

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli/v2"
)

// Version information, set at build time with
// -ldflags "-X main.version=1.0.0 -X main.commit=abc123".
var (
	version   = "0.1.0"
	commit    = "unknown"
	buildDate = "unknown"
)

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "print version information",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "short", Usage: "print only the version number"},
	},
	Action: func(cctx *cli.Context) error {
		w := cctx.App.Writer
		if cctx.Bool("short") {
			fmt.Fprintln(w, version)
			return nil
		}
		fmt.Fprintf(w, "obtree version %s\n", version)
		fmt.Fprintf(w, "  Commit:     %s\n", commit)
		fmt.Fprintf(w, "  Built:      %s\n", buildDate)
		fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
		fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return nil
	},
}
