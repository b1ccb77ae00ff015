package consensus

import (
	"context"
	"time"

	"github.com/libdist-rs/optrand/types"
)

// InMsg is one decoded message from the transport, attributed to its
// authenticated sender.
type InMsg struct {
	From types.Replica
	Msg  types.ProtocolMsg
}

// Network is the transport contract the reactor consumes: a way to send
// and a stream of inbound messages. Target Broadcast fans out to all.
type Network interface {
	Send(target types.Replica, msg types.ProtocolMsg)
	Recv() <-chan InMsg
}

// Run drives the state machine until ctx is cancelled: it selects over
// inbound messages, worker results, and the next timer deadline, and
// between selections drains the event queue to quiescence. Handlers
// themselves never block.
func Run(ctx context.Context, sm *StateMachine, net Network, clock Clock) error {
	q := NewEventQueue(1024, clock, func(out OutMsg) {
		net.Send(out.Target, out.Msg)
	})
	sm.AttachQueue(q)
	sm.Bootstrap(q)

	recv := net.Recv()
	worker := sm.worker.Out()
	for {
		// Drain everything runnable before sleeping. Loopback events
		// queued by a handler run before any remote message is polled
		// again, so a leader never waits on its own multicast.
		for {
			ev, ok := q.Poll()
			if !ok {
				break
			}
			sm.HandleEvent(ev, q)
		}

		var timerC <-chan time.Time
		var timer *time.Timer
		if deadline, ok := q.NextDeadline(); ok {
			d := deadline.Sub(clock.Now())
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case in, ok := <-recv:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				log.Warn("transport closed; stopping reactor")
				return nil
			}
			sm.OnMessage(in.From, in.Msg, q)
		case res := <-worker:
			sm.OnWorkerResult(res, q)
		case <-timerC:
			// The drain loop at the top pops the due timeout.
		}
		if timer != nil {
			timer.Stop()
		}
	}
}
