package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Unpack HomeBrew "DMRD" datagrams into frames.
 *
 * Description:	Layout, all big endian:
 *
 *		0	"DMRD"
 *		4	sequence number
 *		5	source radio id, 3 bytes
 *		8	destination id, 3 bytes
 *		11	peer id, 4 bytes
 *		15	slot byte:	bit 7 timeslot, bit 6 call type,
 *					bits 5-4 frame type, bits 3-0 data type
 *		16	stream id, 4 bytes
 *		20	33 byte burst
 *		53	optional BER + RSSI, or a 20 byte OpenBridge HMAC.
 *
 *		Peer authentication is the host's business.  Anything
 *		after the burst is ignored.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
)

const (
	DMRD_SIGNATURE = "DMRD"
	DMRD_MIN_BYTES = 53

	DMRD_OFFSET_SEQ     = 4
	DMRD_OFFSET_SRC     = 5
	DMRD_OFFSET_DST     = 8
	DMRD_OFFSET_PEER    = 11
	DMRD_OFFSET_SLOT    = 15
	DMRD_OFFSET_STREAM  = 16
	DMRD_OFFSET_PAYLOAD = 20
)

// Data types of interest, from the low nibble of the slot byte.
const (
	DataTypeCSBK       = 0x03
	DataTypeDataHeader = 0x06
	DataTypeRate12Data = 0x07
)

// Frame types, bits 5-4 of the slot byte.
const (
	FrameTypeVoice     = 0x00
	FrameTypeVoiceSync = 0x01
	FrameTypeDataSync  = 0x02
)

type CallType int

const (
	CallTypeGroup CallType = iota
	CallTypeUnit
	CallTypeVCSBK // data sync frame flagged as CSBK by the slot bits
)

func (c CallType) String() string {
	switch c {
	case CallTypeGroup:
		return "group"
	case CallTypeUnit:
		return "unit"
	case CallTypeVCSBK:
		return "vcsbk"
	default:
		return fmt.Sprintf("calltype(%d)", int(c))
	}
}

// ParseCallType accepts the names used in the configuration file.
func ParseCallType(s string) (CallType, error) {
	switch s {
	case "group":
		return CallTypeGroup, nil
	case "unit", "private":
		return CallTypeUnit, nil
	case "vcsbk":
		return CallTypeVCSBK, nil
	}

	return CallTypeGroup, fmt.Errorf("unknown call type %q, expected group or unit", s)
}

// RawFrame is one burst as handed over by the network host.
type RawFrame struct {
	PeerID    uint32
	SourceID  uint32
	DestID    uint32
	Sequence  uint8
	Timeslot  int // 1 or 2
	CallType  CallType
	FrameType uint8
	DataType  uint8 // block type code
	StreamID  uint32
	Payload   []byte // 33 byte coded burst
}

// Voice frames carry a burst letter 0-5 in the same nibble, so the
// data type alone is enough to tell these apart.

func (f RawFrame) IsHeader() bool {
	return f.DataType == DataTypeDataHeader
}

func (f RawFrame) IsRate12Data() bool {
	return f.DataType == DataTypeRate12Data
}

// ParseDMRD unpacks one datagram.
func ParseDMRD(pkt []byte) (RawFrame, error) {
	var f RawFrame

	if len(pkt) < DMRD_MIN_BYTES {
		return f, fmt.Errorf("%w: DMRD datagram is %d bytes, need %d", ErrDecode, len(pkt), DMRD_MIN_BYTES)
	}
	if string(pkt[:4]) != DMRD_SIGNATURE {
		return f, fmt.Errorf("%w: not a DMRD datagram, signature %q", ErrDecode, pkt[:4])
	}

	var slot = pkt[DMRD_OFFSET_SLOT]

	f.Sequence = pkt[DMRD_OFFSET_SEQ]
	f.SourceID = uint24(pkt[DMRD_OFFSET_SRC:])
	f.DestID = uint24(pkt[DMRD_OFFSET_DST:])
	f.PeerID = binary.BigEndian.Uint32(pkt[DMRD_OFFSET_PEER:])
	f.StreamID = binary.BigEndian.Uint32(pkt[DMRD_OFFSET_STREAM:])
	f.Payload = pkt[DMRD_OFFSET_PAYLOAD : DMRD_OFFSET_PAYLOAD+BURST_PAYLOAD_BYTES]

	f.Timeslot = 1
	if slot&0x80 != 0 {
		f.Timeslot = 2
	}

	f.FrameType = (slot & 0x30) >> 4
	f.DataType = slot & 0x0f

	switch {
	case slot&0x40 != 0:
		f.CallType = CallTypeUnit
	case slot&0x23 == 0x23:
		// Data sync with the low two data type bits set.  Rate 1/2
		// data blocks of a group call land here as well as CSBKs.
		f.CallType = CallTypeVCSBK
	default:
		f.CallType = CallTypeGroup
	}

	return f, nil
}

// EncodeDMRD is the inverse of ParseDMRD, used by the replay tool and tests.
func EncodeDMRD(f RawFrame) []byte {
	var pkt = make([]byte, DMRD_MIN_BYTES)

	copy(pkt, DMRD_SIGNATURE)
	pkt[DMRD_OFFSET_SEQ] = f.Sequence
	putUint24(pkt[DMRD_OFFSET_SRC:], f.SourceID)
	putUint24(pkt[DMRD_OFFSET_DST:], f.DestID)
	binary.BigEndian.PutUint32(pkt[DMRD_OFFSET_PEER:], f.PeerID)
	binary.BigEndian.PutUint32(pkt[DMRD_OFFSET_STREAM:], f.StreamID)

	var slot = (f.FrameType&0x03)<<4 | f.DataType&0x0f
	if f.Timeslot == 2 {
		slot |= 0x80
	}
	if f.CallType == CallTypeUnit {
		slot |= 0x40
	}
	pkt[DMRD_OFFSET_SLOT] = slot

	copy(pkt[DMRD_OFFSET_PAYLOAD:], f.Payload)

	return pkt
}

func uint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}
