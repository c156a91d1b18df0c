package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Put the blocks of a DMR data transmission back together.
 *
 * Description:	A transmission is a data header, announcing how many
 *		blocks follow, then that many rate 1/2 data blocks.
 *
 *		Each transmission is tracked by its stream id so two
 *		radios sending at the same time don't get mixed up.
 *
 *		    idle --header--> awaiting(n) --n data blocks--> idle
 *
 *		A new header for the same stream starts over.  So does a
 *		data block with sequence number 0, which means we missed
 *		the header of a new transmission.  Anything that sits
 *		idle for longer than the timeout is thrown away.
 *
 *		Blocks are assumed to arrive in order and only once.
 *		Nothing here detects reordering or duplicates.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// A group call data block is flagged as VCSBK by the host.  Only
// accept those once we are clearly into the stream.
const VCSBK_MIN_SEQUENCE = 3

type AssemblerConfig struct {
	DataID   uint32        // Destination id that data is sent to.
	CallType CallType      // Group or unit.
	Timeout  time.Duration // Zero means wait forever.
}

// Transmission is a completed reassembly.
type Transmission struct {
	StreamID  uint32
	SourceID  uint32
	DestID    uint32
	Timeslot  int
	Header    InformationBlock
	Blocks    int
	Data      []byte // INFO_BYTES per block, in arrival order
	Completed time.Time
}

func (t *Transmission) HeaderFormat() HeaderFormat {
	return t.Header.HeaderFormat()
}

type assembly struct {
	source    uint32
	dest      uint32
	timeslot  int
	header    InformationBlock
	announced int
	remaining int
	data      []byte
	lastSeen  time.Time
}

type Assembler struct {
	config  AssemblerConfig
	logger  *log.Logger
	metrics *Metrics

	mu     sync.Mutex
	active map[uint32]*assembly
}

func NewAssembler(config AssemblerConfig, logger *log.Logger, metrics *Metrics) *Assembler {
	return &Assembler{
		config:  config,
		logger:  logger,
		metrics: metrics,
		active:  make(map[uint32]*assembly),
	}
}

// Accepts reports whether a frame is addressed to us with the configured call type.
func (a *Assembler) Accepts(f RawFrame) bool {
	if f.DestID != a.config.DataID {
		return false
	}

	if f.CallType == a.config.CallType {
		return true
	}

	return f.CallType == CallTypeVCSBK && f.Sequence > VCSBK_MIN_SEQUENCE
}

/*------------------------------------------------------------------
 *
 * Name:        Push
 *
 * Purpose:     Feed one decoded burst into the state machine.
 *
 * Inputs:      f	- Frame it came from.  Must already pass Accepts.
 *		block	- Information bits of the burst.
 *		now	- Arrival time, for the idle timeout.
 *
 * Returns:     The finished transmission when this was the last block,
 *		otherwise nil.
 *
 * Errors:	ErrReassembly for a header announcing no blocks.
 *		ErrNoAssembly for a data block nobody is waiting for.
 *		Frames of other block types return nil, nil.
 *
 *----------------------------------------------------------------*/

func (a *Assembler) Push(f RawFrame, block InformationBlock, now time.Time) (*Transmission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.expireLocked(now)

	switch {
	case f.IsHeader():
		return nil, a.header(f, block, now)
	case f.IsRate12Data():
		return a.data(f, block, now)
	default:
		return nil, nil
	}
}

func (a *Assembler) header(f RawFrame, block InformationBlock, now time.Time) error {
	var logger = a.logger.With("stream", fmt.Sprintf("%08x", f.StreamID), "src", f.SourceID)

	if old, found := a.active[f.StreamID]; found {
		logger.Warn("New header, discarding partial transmission",
			"received", old.announced-old.remaining, "announced", old.announced)
		a.metrics.assembly("superseded")
		delete(a.active, f.StreamID)
	}

	var count = block.BlocksToFollow()
	if count == 0 {
		a.metrics.assembly("rejected")
		return fmt.Errorf("%w: header from %d announces no blocks", ErrReassembly, f.SourceID)
	}

	logger.Debug("Data header", "tag", fmt.Sprintf("%04x", block.HeaderTag()),
		"format", block.HeaderFormat(), "blocks", count)

	a.active[f.StreamID] = &assembly{
		source:    f.SourceID,
		dest:      f.DestID,
		timeslot:  f.Timeslot,
		header:    block,
		announced: count,
		remaining: count,
		data:      make([]byte, 0, count*INFO_BYTES),
		lastSeen:  now,
	}
	a.metrics.assembly("started")

	return nil
}

func (a *Assembler) data(f RawFrame, block InformationBlock, now time.Time) (*Transmission, error) {
	var asm, found = a.active[f.StreamID]
	if !found {
		a.metrics.assembly("orphan")
		return nil, fmt.Errorf("%w: data block from %d, stream %08x", ErrNoAssembly, f.SourceID, f.StreamID)
	}

	if f.Sequence == 0 {
		// Header was missed.  Whatever we have belongs to something else.
		a.logger.Warn("Sequence restarted, discarding partial transmission",
			"stream", fmt.Sprintf("%08x", f.StreamID), "src", f.SourceID, "dropped_bytes", len(asm.data))
		a.metrics.assembly("restarted")
		asm.data = asm.data[:0]
	}

	asm.remaining--
	asm.data = append(asm.data, block[:]...)
	asm.lastSeen = now

	a.logger.Debug("Data block", "stream", fmt.Sprintf("%08x", f.StreamID), "src", f.SourceID,
		"remaining", asm.remaining, "block", block)

	if asm.remaining > 0 {
		return nil, nil
	}

	delete(a.active, f.StreamID)
	a.metrics.assembly("completed")

	return &Transmission{
		StreamID:  f.StreamID,
		SourceID:  asm.source,
		DestID:    asm.dest,
		Timeslot:  asm.timeslot,
		Header:    asm.header,
		Blocks:    asm.announced,
		Data:      asm.data,
		Completed: now,
	}, nil
}

// Expire drops transmissions idle for longer than the timeout.  Returns how many.
func (a *Assembler) Expire(now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.expireLocked(now)
}

func (a *Assembler) expireLocked(now time.Time) int {
	if a.config.Timeout <= 0 {
		return 0
	}

	var n = 0
	for stream, asm := range a.active {
		if now.Sub(asm.lastSeen) <= a.config.Timeout {
			continue
		}

		a.logger.Info("Abandoned transmission expired",
			"stream", fmt.Sprintf("%08x", stream), "src", asm.source,
			"last_block", humanize.RelTime(asm.lastSeen, now, "ago", "from now"),
			"received", asm.announced-asm.remaining, "announced", asm.announced)
		delete(a.active, stream)
		a.metrics.assembly("expired")
		n++
	}

	return n
}

// Active is the number of transmissions in progress.
func (a *Assembler) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.active)
}
