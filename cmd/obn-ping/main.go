// Copyright 2024 The go-ouroboros Authors
// This file is part of the go-ouroboros library.
//
// The go-ouroboros library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ouroboros library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ouroboros library. If not, see <http://www.gnu.org/licenses/>.

// obn-ping is a small demonstrative binary: it dials a peer, runs a
// Handshake, then drives a handful of PingPong exchanges over the
// negotiated connection. It is not part of the core client library —
// a caller embedding go-ouroboros in a real node does its own wiring.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"

	"github.com/probeum/go-ouroboros/driver"
	"github.com/probeum/go-ouroboros/log"
	"github.com/probeum/go-ouroboros/muxer"
	"github.com/probeum/go-ouroboros/params"
	"github.com/probeum/go-ouroboros/protocols/handshake"
	"github.com/probeum/go-ouroboros/protocols/pingpong"
)

func offers() []handshake.Version {
	vs := make([]handshake.Version, len(params.NodeToNodeVersions))
	for i, n := range params.NodeToNodeVersions {
		vs[i] = handshake.Version{Family: handshake.NodeToNode, Number: n}
	}
	return vs
}

var (
	addrFlag = cli.StringFlag{
		Name:  "addr",
		Usage: "host:port of the peer to dial",
		Value: "127.0.0.1:3001",
	}
	magicFlag = cli.Uint64Flag{
		Name:  "magic",
		Usage: "network magic to offer during Handshake",
		Value: uint64(params.MagicMainnet),
	}
	roundsFlag = cli.IntFlag{
		Name:  "rounds",
		Usage: "number of PingPong exchanges to run",
		Value: 5,
	}
	timeoutFlag = cli.DurationFlag{
		Name:  "timeout",
		Usage: "overall deadline for the session",
		Value: 10 * time.Second,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "obn-ping"
	app.Usage = "dial a peer, handshake, and exchange PingPong rounds"
	app.Flags = []cli.Flag{addrFlag, magicFlag, roundsFlag, timeoutFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	addr := ctx.String(addrFlag.Name)
	magic := uint32(ctx.Uint64(magicFlag.Name))
	rounds := ctx.Int(roundsFlag.Name)
	timeout := ctx.Duration(timeoutFlag.Name)

	runCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := muxer.Dial(runCtx, addr, "3001", muxer.RoleClient)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	log.Info("dialed peer", "addr", addr)

	hsCh := conn.Open(params.ProtocolHandshake)
	client := &handshake.Client{Offers: offers(), Magic: magic}
	if err := driver.New(hsCh, client).Run(runCtx); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	log.Info("handshake complete", "version", client.Result.Version, "magic", client.Result.Magic)

	ppCh := conn.Open(params.ProtocolPingPongDefault)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		pp := pingpong.NewClient()
		for i := 0; i < rounds; i++ {
			if err := pp.Exchange(gctx, ppCh); err != nil {
				return fmt.Errorf("ping %d: %w", i, err)
			}
			log.Info("pong received", "round", i)
		}
		pp.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("session complete", "rounds", rounds)
	return nil
}
