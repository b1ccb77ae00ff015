// genconfig produces one config file per replica for a fresh deployment:
// fresh keys, the address map, TLS material, and the shared bootstrap
// beacon queue.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/libdist-rs/optrand/config"
)

func main() {
	app := &cli.App{
		Name:  "genconfig",
		Usage: "generate per-replica OptRand configuration files",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "num-nodes", Aliases: []string{"n"}, Required: true, Usage: "number of replicas"},
			&cli.IntFlag{Name: "num-faults", Aliases: []string{"f"}, Required: true, Usage: "tolerated Byzantine faults, 2f < n"},
			&cli.Uint64Flag{Name: "delay", Value: 50, Usage: "synchrony bound Δ in milliseconds"},
			&cli.IntFlag{Name: "base-port", Value: 7000, Usage: "replica i listens on base-port+i"},
			&cli.StringFlag{Name: "host", Value: "127.0.0.1", Usage: "host every replica binds"},
			&cli.IntFlag{Name: "payload", Value: 0, Usage: "opaque block payload size in bytes"},
			&cli.StringFlag{Name: "out", Value: "json", Usage: "config format: bin|json|toml|yaml"},
			&cli.StringFlag{Name: "target", Value: ".", Usage: "output directory"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	format, err := config.ParseFormat(c.String("out"))
	if err != nil {
		return err
	}
	target := c.String("target")
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}

	files, err := config.Generate(config.GenParams{
		NumNodes:    c.Int("num-nodes"),
		NumFaults:   c.Int("num-faults"),
		DeltaMS:     c.Uint64("delay"),
		BasePort:    c.Int("base-port"),
		PayloadSize: c.Int("payload"),
		Host:        c.String("host"),
	})
	if err != nil {
		return err
	}

	for i, f := range files {
		path := filepath.Join(target, fmt.Sprintf("nodes-%d.%s", i, format.Ext()))
		if err := config.Save(f, path); err != nil {
			return err
		}
		logrus.WithField("path", path).Info("wrote config")
	}
	return nil
}
