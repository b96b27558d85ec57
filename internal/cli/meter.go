package cli

import (
	"fmt"

	"github.com/pion/rtp"
)

type meterStats struct {
	Packets uint64
	Bytes   uint64
	Lost    uint64

	lastSeq uint16
	started bool
}

func (s *meterStats) observe(pkt *rtp.Packet) {
	s.Packets++
	s.Bytes += uint64(len(pkt.Payload))
	if !s.started {
		s.started = true
		s.lastSeq = pkt.SequenceNumber
		return
	}
	// uint16 arithmetic handles wraparound; a huge gap means reordering.
	gap := pkt.SequenceNumber - s.lastSeq
	if gap == 0 || gap >= 0x8000 {
		return
	}
	s.Lost += uint64(gap - 1)
	s.lastSeq = pkt.SequenceNumber
}

func (s meterStats) String() string {
	return fmt.Sprintf("%d packets, %d bytes, %d lost", s.Packets, s.Bytes, s.Lost)
}

// meter reads RTP until read fails.
func meter(read func() (*rtp.Packet, error)) meterStats {
	var s meterStats
	for {
		pkt, err := read()
		if err != nil {
			return s
		}
		s.observe(pkt)
	}
}
