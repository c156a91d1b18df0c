package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Find the callsign for a radio id.
 *
 * Description:	Reads the user list published by radioid.net:
 *
 *		RADIO_ID,CALLSIGN,FIRST_NAME,LAST_NAME,CITY,STATE,COUNTRY
 *		3112345,N0CALL,Joe,,Springfield,Illinois,United States
 *
 *		Columns are found by name.  A file without the heading
 *		line is taken to have id then callsign.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

type SubscriberDirectory struct {
	calls map[uint32]string
}

func LoadSubscribers(path string) (*SubscriberDirectory, error) {
	var f, err = os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var d, rerr = ReadSubscribers(f)
	if rerr != nil {
		return nil, fmt.Errorf("%s: %w", path, rerr)
	}

	return d, nil
}

func ReadSubscribers(r io.Reader) (*SubscriberDirectory, error) {
	var reader = csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	var d = &SubscriberDirectory{calls: make(map[uint32]string)}
	var idCol, callCol = 0, 1
	var first = true

	for {
		var record, err = reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if first {
			first = false
			if cols, ok := subscriberColumns(record); ok {
				idCol, callCol = cols[0], cols[1]
				continue
			}
		}

		if len(record) <= idCol || len(record) <= callCol {
			continue
		}

		var id, perr = strconv.ParseUint(strings.TrimSpace(record[idCol]), 10, 32)
		var call = strings.ToUpper(strings.TrimSpace(record[callCol]))
		if perr != nil || call == "" {
			continue
		}

		d.calls[uint32(id)] = call
	}

	return d, nil
}

// Positions of the id and callsign columns, if this is a heading line.
func subscriberColumns(record []string) ([2]int, bool) {
	var cols = [2]int{-1, -1}

	for i, name := range record {
		switch strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "RADIO_ID", "ID":
			cols[0] = i
		case "CALLSIGN", "CALL":
			cols[1] = i
		}
	}

	return cols, cols[0] >= 0 && cols[1] >= 0
}

// Callsign for a radio, or the id in decimal if we don't know it.
func (d *SubscriberDirectory) Callsign(id uint32) string {
	if d != nil {
		if call, found := d.calls[id]; found {
			return call
		}
	}

	return strconv.FormatUint(uint64(id), 10)
}

// Known reports whether the directory has the radio.
func (d *SubscriberDirectory) Known(id uint32) bool {
	if d == nil {
		return false
	}

	var _, found = d.calls[id]
	return found
}

func (d *SubscriberDirectory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.calls)
}
