// optrand is the node driver: it loads a replica config, starts the
// transport, the PVSS aggregation worker, and the reactor, and runs until
// interrupted.
package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/libdist-rs/optrand/config"
	"github.com/libdist-rs/optrand/consensus"
	optnet "github.com/libdist-rs/optrand/net"
	"github.com/libdist-rs/optrand/types"
)

func main() {
	app := &cli.App{
		Name:  "optrand",
		Usage: "run one OptRand replica",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "replica config file"},
			&cli.StringFlag{Name: "ip", Usage: "file overriding the address map, one 'id addr' per line"},
			&cli.Uint64Flag{Name: "delta", Usage: "override Δ in milliseconds"},
			&cli.BoolFlag{Name: "d", Count: new(int), Usage: "increase log verbosity (repeatable)"},
			&cli.StringFlag{Name: "client-addr", Usage: "reconfiguration side-channel listen address"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	switch c.Count("d") {
	case 0:
		logrus.SetLevel(logrus.InfoLevel)
	case 1:
		logrus.SetLevel(logrus.DebugLevel)
	default:
		logrus.SetLevel(logrus.TraceLevel)
	}

	node, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("delta") {
		node.Delta = time.Duration(c.Uint64("delta")) * time.Millisecond
	}
	if ipFile := c.String("ip"); ipFile != "" {
		if err := applyIPFile(node, ipFile); err != nil {
			return err
		}
	}
	if err := node.Validate(); err != nil {
		return err
	}

	log := logrus.WithField("prefix", "driver").WithField("id", node.ID)

	transport, err := optnet.New(node)
	if err != nil {
		return err
	}
	if err := transport.Start(); err != nil {
		return err
	}
	defer transport.Stop()

	if addr := c.String("client-addr"); addr != "" {
		cl, err := optnet.ListenClient(addr)
		if err != nil {
			return err
		}
		defer cl.Close()
		go func() {
			for m := range cl.Msgs() {
				log.WithField("node", m.NewNode).WithField("addr", m.Addr).
					Info("reconfiguration request received (membership is fixed; ignoring)")
			}
		}()
	}

	worker := consensus.NewWorker(node.PvssCtx, node.PKMap, node.ID, node.NumFaults)
	worker.Start()
	defer worker.Stop()

	sm := consensus.NewStateMachine(node, worker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down")
		cancel()
	}()

	log.WithField("n", node.NumNodes).WithField("f", node.NumFaults).
		WithField("delta", node.Delta).Info("replica starting")
	if err := consensus.Run(ctx, sm, transport, consensus.RealClock{}); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// applyIPFile replaces the address map with entries from a file of
// "id addr" lines, matching the deployment tooling's output.
func applyIPFile(node *config.Node, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		id, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			continue
		}
		node.NetMap[types.Replica(id)] = fields[1]
	}
	return sc.Err()
}
