package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/piratecash/llmqd/build"
	"github.com/piratecash/llmqd/llmq"
	"github.com/piratecash/llmqd/simnet"
	"github.com/piratecash/llmqd/snapshot"
	"github.com/piratecash/llmqd/spork"
	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[llmqcli] %v\n", err)
	os.Exit(1)
}

// session is a synthetic network together with a quorum engine reading it.
// Every command builds its own session from the global options.
type session struct {
	network   *simnet.Network
	engine    *llmq.Engine
	snapshots *snapshot.MemStore
	sporks    *spork.Manager
}

// newSession builds the network described by the global options.
func newSession(ctx *cli.Context) (*session, error) {
	netParams, err := llmq.ParamsForNetwork(ctx.GlobalString("network"))
	if err != nil {
		return nil, err
	}

	cfg := simnet.DefaultConfig()
	cfg.Seed = ctx.GlobalString("seed")
	cfg.Masternodes = ctx.GlobalInt("masternodes")
	cfg.ChurnInterval = int32(ctx.GlobalInt("churninterval"))
	cfg.ActivateAtGenesis = ctx.GlobalBool("activate")

	network, err := simnet.New(cfg, netParams)
	if err != nil {
		return nil, err
	}

	clk := clock.NewTestClock(cfg.StartTime)
	sporks := spork.NewManager(clk)
	if ctx.GlobalBool("allconnected") {
		sporks.SetSporkValue(spork.SporkQuorumAllConnected, 0)
	}

	snapshots := snapshot.NewMemStore()
	engine, err := llmq.New(llmq.Config{
		NetParams:   network.NetParams(),
		Lists:       network.Lists(),
		Snapshots:   snapshots,
		Deployments: network.Deployments(),
		Sporks:      sporks,
		Quorums:     network,
		Clock:       clk,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		network:   network,
		engine:    engine,
		snapshots: snapshots,
		sporks:    sporks,
	}, nil
}

// printJSON prints the value as indented JSON.
func printJSON(resp interface{}) {
	b, err := json.Marshal(resp)
	if err != nil {
		fatal(err)
	}

	var out bytes.Buffer
	_ = json.Indent(&out, b, "", "\t")
	out.WriteString("\n")
	_, _ = out.WriteTo(os.Stdout)
}

func main() {
	app := cli.NewApp()
	app.Name = "llmqcli"
	app.Version = build.Version() + " commit=" + build.Commit
	app.Usage = "inspect quorums of a synthetic masternode network"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Value: "regtest",
			Usage: "The network whose quorum parameters are used.",
		},
		cli.StringFlag{
			Name:  "seed",
			Value: "llmqd",
			Usage: "The seed of every generated hash.",
		},
		cli.IntFlag{
			Name:  "masternodes",
			Value: 50,
			Usage: "The size of the masternode population at genesis.",
		},
		cli.IntFlag{
			Name:  "churninterval",
			Value: simnet.DefaultChurnInterval,
			Usage: "The number of blocks between changes of the " +
				"population. 0 keeps the genesis population.",
		},
		cli.BoolFlag{
			Name: "activate",
			Usage: "Activate every deployment at genesis instead " +
				"of going through version bits signalling.",
		},
		cli.BoolFlag{
			Name: "allconnected",
			Usage: "Enable SPORK_21_QUORUM_ALL_CONNECTED for every " +
				"quorum type.",
		},
	}
	app.Commands = []cli.Command{
		paramsCommand,
		quorumsCommand,
		membersCommand,
		connectionsCommand,
		snapshotCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
