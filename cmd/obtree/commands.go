package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/KilimcininKorOglu/obtree/internal/storage/engine"
)

var putCommand = &cli.Command{
	Name:      "put",
	Usage:     "store a value under a key",
	ArgsUsage: "<key> <value>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return cli.Exit("put requires <key> <value>", 2)
		}
		key, value := cctx.Args().Get(0), cctx.Args().Get(1)
		return withDB(cctx, true, func(db *engine.DB) error {
			old, replaced, err := db.Put([]byte(key), []byte(value))
			if err != nil {
				return err
			}
			if replaced {
				fmt.Fprintf(cctx.App.Writer, "replaced %q (was %q)\n", key, old)
			} else {
				fmt.Fprintf(cctx.App.Writer, "inserted %q\n", key)
			}
			return nil
		})
	},
}

var getCommand = &cli.Command{
	Name:      "get",
	Usage:     "print the value stored under a key",
	ArgsUsage: "<key>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return cli.Exit("get requires <key>", 2)
		}
		key := cctx.Args().First()
		return withDB(cctx, false, func(db *engine.DB) error {
			v, found, err := db.Get([]byte(key))
			if err != nil {
				return err
			}
			if !found {
				return cli.Exit(fmt.Sprintf("key %q not found", key), 3)
			}
			fmt.Fprintf(cctx.App.Writer, "%s\n", v)
			return nil
		})
	},
}

var delCommand = &cli.Command{
	Name:      "del",
	Aliases:   []string{"delete", "rm"},
	Usage:     "remove a key",
	ArgsUsage: "<key>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return cli.Exit("del requires <key>", 2)
		}
		key := cctx.Args().First()
		return withDB(cctx, true, func(db *engine.DB) error {
			old, found, err := db.Delete([]byte(key))
			if err != nil {
				return err
			}
			if !found {
				return cli.Exit(fmt.Sprintf("key %q not found", key), 3)
			}
			fmt.Fprintf(cctx.App.Writer, "deleted %q (was %q)\n", key, old)
			return nil
		})
	},
}

var scanCommand = &cli.Command{
	Name:  "scan",
	Usage: "print keys and values in ascending key order",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "from",
			Usage: "start at the first key greater than or equal to this one",
		},
		&cli.BoolFlag{
			Name:  "exclusive",
			Usage: "skip --from itself when present",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "print at most this many entries (0 for all)",
		},
	},
	Action: func(cctx *cli.Context) error {
		var from []byte
		if cctx.IsSet("from") {
			from = []byte(cctx.String("from"))
		}
		return withDB(cctx, false, func(db *engine.DB) error {
			return db.Scan(from, !cctx.Bool("exclusive"), cctx.Int("limit"), func(k, v []byte) bool {
				fmt.Fprintf(cctx.App.Writer, "%s\t%s\n", k, v)
				return true
			})
		})
	},
}

var statsCommand = &cli.Command{
	Name:  "stats",
	Usage: "print the shape of the tree",
	Action: func(cctx *cli.Context) error {
		return withDB(cctx, false, func(db *engine.DB) error {
			s, err := db.Stats()
			if err != nil {
				return err
			}
			w := cctx.App.Writer
			fmt.Fprintf(w, "Backend:   %s\n", s.Backend)
			if s.Dir != "" && s.Backend != "memory" {
				fmt.Fprintf(w, "Directory: %s\n", s.Dir)
				if size, err := dirSize(s.Dir); err == nil {
					fmt.Fprintf(w, "On disk:   %s\n", humanize.Bytes(uint64(size)))
				}
			}
			fmt.Fprintf(w, "Degree:    %d\n", s.Degree)
			fmt.Fprintf(w, "Keys:      %s\n", humanize.Comma(int64(s.Len)))
			fmt.Fprintf(w, "Height:    %d\n", s.Height)
			fmt.Fprintf(w, "Nodes:     %s (%s leaves, %s internal)\n",
				humanize.Comma(int64(s.Nodes)),
				humanize.Comma(int64(s.Leaves)),
				humanize.Comma(int64(s.InternalNodes)))
			fmt.Fprintf(w, "Fill:      %s%%\n", humanize.FormatFloat("#.#", s.Fill*100))
			return nil
		})
	},
}

var verifyCommand = &cli.Command{
	Name:  "verify",
	Usage: "check every structural invariant of the tree",
	Action: func(cctx *cli.Context) error {
		return withDB(cctx, false, func(db *engine.DB) error {
			if err := db.Verify(); err != nil {
				return cli.Exit(fmt.Sprintf("verify failed: %v", err), 4)
			}
			fmt.Fprintf(cctx.App.Writer, "ok: %s keys\n", humanize.Comma(int64(db.Len())))
			return nil
		})
	},
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
