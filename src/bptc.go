package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Recover the 96 information bits of a rate 1/2 DMR data
 *		burst (data header or data block).
 *
 * Description:	A DMR burst carries 264 bits.  The middle 68 are the
 *		slot type and sync pattern, which leaves 196 bits of
 *		BPTC(196,96) coded payload.  The information bits sit
 *		at fixed, interleaved positions within those 196.
 *
 *		We only pick them out.  The Hamming row/column parity
 *		is never checked or used to correct anything.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/hex"
	"fmt"
)

const (
	BURST_PAYLOAD_BYTES = 33  /* Payload of one DMRD datagram. */
	BURST_BITS          = 264 /* 98 + 10 + 48 + 10 + 98 */
	BURST_HALF_BITS     = 98
	BURST_GAP_BITS      = 68 /* slot type + sync + slot type */
	CODED_BITS          = 196
	INFO_BITS           = 96
	INFO_BYTES          = INFO_BITS / 8
)

// Position in the 196 bit coded block for each information bit, in order.
// The last two rows are the tail of the full LC block which, for data,
// carries payload too.
var bptcInfoPositions = [INFO_BITS]int{
	136, 121, 106, 91, 76, 61, 46, 31,
	152, 137, 122, 107, 92, 77, 62, 47, 32, 17, 2,
	123, 108, 93, 78, 63, 48, 33, 18, 3, 184, 169,
	94, 79, 64, 49, 34, 19, 4, 185, 170, 155, 140,
	65, 50, 35, 20, 5, 186, 171, 156, 141, 126, 111,
	36, 21, 6, 187, 172, 157, 142, 127, 112, 97, 82,
	7, 188, 173, 158, 143, 128, 113, 98, 83,
	68, 53, 174, 159, 144, 129, 114, 99, 84, 69, 54, 39,
	24, 145, 130, 115, 100, 85, 70, 55, 40, 25, 10, 191,
}

// InformationBlock is the 96 bit payload of one burst, most significant bit first.
type InformationBlock [INFO_BYTES]byte

// HeaderFormat is a guess at how the sender encoded its data, from the header tag.
type HeaderFormat int

const (
	HeaderFormatUnknown HeaderFormat = iota
	HeaderFormatUDT                  // Unified Data Transport, MD-380 style NMEA
	HeaderFormatMotorola             // Motorola style SMS
	HeaderFormatETSI                 // ETSI style SMS
)

func (f HeaderFormat) String() string {
	switch f {
	case HeaderFormatUDT:
		return "UDT"
	case HeaderFormatMotorola:
		return "Motorola"
	case HeaderFormatETSI:
		return "ETSI"
	default:
		return "unknown"
	}
}

/*------------------------------------------------------------------
 *
 * Name:        PayloadBits
 *
 * Purpose:     Unpack a burst and drop the slot type and sync bits.
 *
 * Inputs:      payload	- 33 bytes as found at offset 20 of a DMRD datagram.
 *
 * Returns:     196 coded bits, one per byte, each 0 or 1.
 *
 *----------------------------------------------------------------*/

func PayloadBits(payload []byte) ([]byte, error) {
	if len(payload) < BURST_PAYLOAD_BYTES {
		return nil, fmt.Errorf("%w: burst payload is %d bytes, need %d", ErrDecode, len(payload), BURST_PAYLOAD_BYTES)
	}

	var bits = make([]byte, 0, CODED_BITS)
	for n := 0; n < BURST_BITS; n++ {
		if n >= BURST_HALF_BITS && n < BURST_HALF_BITS+BURST_GAP_BITS {
			continue
		}
		bits = append(bits, (payload[n/8]>>(7-n%8))&1)
	}

	return bits, nil
}

// ExtractInformationBlock picks the information bits out of a 196 bit coded block.
func ExtractInformationBlock(coded []byte) (InformationBlock, error) {
	var block InformationBlock

	if len(coded) < CODED_BITS {
		return block, fmt.Errorf("%w: coded block is %d bits, need %d", ErrDecode, len(coded), CODED_BITS)
	}

	for i, pos := range bptcInfoPositions {
		if coded[pos] != 0 {
			block[i/8] |= 0x80 >> (i % 8)
		}
	}

	return block, nil
}

// DecodeBurst is PayloadBits followed by ExtractInformationBlock.
func DecodeBurst(payload []byte) (InformationBlock, error) {
	var coded, err = PayloadBits(payload)
	if err != nil {
		return InformationBlock{}, err
	}

	return ExtractInformationBlock(coded)
}

// Bit returns information bit n, 0 being the first.
func (b InformationBlock) Bit(n int) byte {
	return (b[n/8] >> (7 - n%8)) & 1
}

// HeaderTag is the first four nibbles of a data header.
func (b InformationBlock) HeaderTag() uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// BlocksToFollow is the count announced by a data header, bits 65 thru 71.
func (b InformationBlock) BlocksToFollow() int {
	var n = 0
	for i := 65; i < 72; i++ {
		n = n<<1 | int(b.Bit(i))
	}

	return n
}

func (b InformationBlock) HeaderFormat() HeaderFormat {
	switch b.HeaderTag() {
	case 0x0005:
		return HeaderFormatUDT
	case 0x024a, 0x824a:
		return HeaderFormatMotorola
	case 0x0244, 0x8244:
		return HeaderFormatETSI
	default:
		return HeaderFormatUnknown
	}
}

func (b InformationBlock) String() string {
	return hex.EncodeToString(b[:])
}
