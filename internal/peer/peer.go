// Package peer assembles and runs the two peers of a duel.
//
// [RunLocal] runs both peers as goroutines in this process over either
// binding. [RunSpawn] runs peer 1 here and peer 2 as a child process, joined
// by directory-backed queues; [RunRemote] is the child's side.
//
// Peer 1 is the controlling peer: it creates the queues, stops peer 2 after
// its last round, and unlinks the queues at the end.
package peer

import (
	"context"

	"github.com/Iron-Ham/numduel/internal/event"
	"github.com/Iron-Ham/numduel/internal/game"
	"github.com/Iron-Ham/numduel/internal/logging"
	"github.com/Iron-Ham/numduel/internal/notify"
	"github.com/Iron-Ham/numduel/internal/round"
)

// Peer is one side of a duel: a link endpoint, its round state and the
// state machine playing over it.
type Peer struct {
	ID      notify.PeerID
	link    notify.Link
	machine *game.Machine
	bus     *event.Bus
	logger  *logging.Logger
}

// connectFunc opens a link that reports arrivals to observer.
type connectFunc func(observer notify.Observer) (notify.Link, error)

func newPeer(id notify.PeerID, opts *Options, connect connectFunc, machineOpts ...game.Option) (*Peer, error) {
	logger := opts.logger().WithPeer(int(id))
	state := game.NewSharedRoundState(game.WithEvents(opts.Bus, id))

	link, err := connect(state)
	if err != nil {
		return nil, err
	}

	machineOpts = append([]game.Option{
		game.WithSource(opts.source(id)),
		game.WithBus(opts.Bus),
		game.WithLogger(logger),
	}, machineOpts...)
	m, err := game.NewMachine(id, link, state, opts.Max, machineOpts...)
	if err != nil {
		_ = link.Close()
		return nil, err
	}
	return &Peer{ID: id, link: link, machine: m, bus: opts.Bus, logger: logger}, nil
}

// Link returns the peer's channel endpoint.
func (p *Peer) Link() notify.Link {
	return p.link
}

// Run plays rounds rounds.
func (p *Peer) Run(ctx context.Context, rounds int, extra ...round.Option) (round.Summary, error) {
	coordOpts := append([]round.Option{
		round.WithBus(p.bus),
		round.WithLogger(p.logger),
	}, extra...)
	c, err := round.NewCoordinator(p.ID, p.machine, rounds, coordOpts...)
	if err != nil {
		return round.Summary{Peer: p.ID}, err
	}
	p.logger.Info("peer started", "rounds", rounds, "max", p.machine.Max())
	summary, err := c.Run(ctx)
	if err != nil {
		p.logger.Error("peer failed", "error", err.Error())
	} else {
		p.logger.Info("peer finished", "rounds_played", summary.Played(), "terminated", summary.Terminated)
	}
	return summary, err
}

// Close closes the peer's link.
func (p *Peer) Close() error {
	return p.link.Close()
}

// Outcome holds both peers' summaries.
type Outcome struct {
	Peer1 round.Summary
	Peer2 round.Summary
}

// Summary returns the summary for id.
func (o Outcome) Summary(id notify.PeerID) round.Summary {
	if id == notify.Peer1 {
		return o.Peer1
	}
	return o.Peer2
}
