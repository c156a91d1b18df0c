/* Decode DMR data bursts, for looking at captures. */
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	dmrgps "github.com/doismellburning/dmrgps/src"
	"github.com/spf13/pflag"
)

func main() {
	var dmrd = pflag.BoolP("dmrd", "d", false, "Input is whole DMRD datagrams rather than 33 byte bursts.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = usage

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	var failed = false

	if pflag.NArg() > 0 {
		for _, arg := range pflag.Args() {
			if !decodeLine(arg, *dmrd) {
				failed = true
			}
		}
	} else {
		var scanner = bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			var line = strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if !decodeLine(line, *dmrd) {
				failed = true
			}
		}
	}

	if failed {
		os.Exit(1)
	}
}

// decodeLine prints what is in one hex encoded burst or datagram.
func decodeLine(line string, dmrd bool) bool {
	var raw, err = hex.DecodeString(strings.ReplaceAll(line, " ", ""))
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return false
	}

	var payload = raw

	if dmrd {
		var frame, ferr = dmrgps.ParseDMRD(raw)
		if ferr != nil {
			fmt.Printf("ERROR: %s\n", ferr)
			return false
		}

		fmt.Printf("seq %d  src %d  dst %d  peer %d  TS%d  %s  frame type %d  data type %d  stream %08x\n",
			frame.Sequence, frame.SourceID, frame.DestID, frame.PeerID, frame.Timeslot,
			frame.CallType, frame.FrameType, frame.DataType, frame.StreamID)

		payload = frame.Payload
	}

	var block, derr = dmrgps.DecodeBurst(payload)
	if derr != nil {
		fmt.Printf("ERROR: %s\n", derr)
		return false
	}

	fmt.Printf("info %s  tag %04x (%s)  blocks to follow %d\n",
		block, block.HeaderTag(), block.HeaderFormat(), block.BlocksToFollow())

	return true
}

func usage() {
	fmt.Printf("Decode DMR data bursts\n")
	fmt.Printf("\n")
	fmt.Printf("Usage:\n")
	fmt.Printf("\tdmrgps-bptc [--dmrd] [hex ...]\n")
	fmt.Printf("\n")
	fmt.Printf("where,\n")
	fmt.Printf("\tEach argument, or each line of standard input, is a burst in hexadecimal.\n")
	fmt.Printf("\n")
	fmt.Printf("Example:\n")
	fmt.Printf("\tdmrgps-bptc 2972bb044d96df2871ba034c95de2770b9024b94dd266fb8014a93dc256eb70049\n")
	pflag.PrintDefaults()
}
