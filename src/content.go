package dmrgps

import (
	"bytes"
	"strings"
)

// Radios that send NMEA over compressed UDP put this somewhere in the data.
const GPS_MARKER = "$GPRMC"

// Trailing CRC-32 on the last data block.
const DATA_CRC_BYTES = 4

type ContentKind int

const (
	ContentMessage ContentKind = iota
	ContentPosition
)

func (k ContentKind) String() string {
	if k == ContentPosition {
		return "position"
	}
	return "message"
}

// Content is what a finished transmission turned out to carry.
type Content struct {
	Kind ContentKind
	Text string // From the GPS marker onwards, or the message text.
}

/*------------------------------------------------------------------
 *
 * Name:        Classify
 *
 * Purpose:     Decide whether reassembled data is a GPS sentence or a
 *		text message, and pull out the text.
 *
 * Description:	Messages are UTF-16 or similar with a zero byte between
 *		characters, preceded by addressing lines.  We drop the
 *		CRC, throw out zero bytes and keep only the last line.
 *
 *----------------------------------------------------------------*/

func Classify(data []byte) Content {
	var text = strings.ToValidUTF8(string(data), "")

	if i := strings.Index(text, GPS_MARKER); i >= 0 {
		return Content{Kind: ContentPosition, Text: text[i:]}
	}

	return Content{Kind: ContentMessage, Text: MessageText(data)}
}

// MessageText extracts the text of a short message from reassembled data.
func MessageText(data []byte) string {
	if len(data) <= DATA_CRC_BYTES {
		return ""
	}

	var body = bytes.ReplaceAll(data[:len(data)-DATA_CRC_BYTES], []byte{0}, nil)
	var text = strings.ToValidUTF8(string(body), "")

	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}

	return text
}
