package live

import (
	"fmt"
	"time"

	"github.com/blivekit/blive/packet"
)

// DefaultHeartbeatInterval is the platform's expected keep-alive
// cadence for the duplex connection.
const DefaultHeartbeatInterval = 20 * time.Second

// heartbeatLoop sends an empty heartbeat frame every interval while the
// session is running. On a send failure it reports the failure and
// exits; closing the transport is left to the read loop, which observes
// the same broken connection.
func (s *Session) heartbeatLoop() {
	tick := s.cfg.heartbeatTick
	if tick == nil {
		t := time.NewTicker(s.cfg.heartbeatInterval)
		defer t.Stop()
		tick = t.C
	}
	for range tick {
		if !s.running.Load() {
			return
		}
		if err := s.send(packet.OpHeartbeat, nil); err != nil {
			if s.running.Load() {
				s.events.push(ErrorEvent{Err: fmt.Errorf("send heartbeat: %w", err)})
			}
			return
		}
		s.cfg.metrics.countHeartbeat()
		s.log.Debug().Msg("heartbeat sent")
	}
}
