// Package main converts pcap captures of AX.25 traffic into KISS capture
// files that netwatch can replay with -fixtures, and prints per-class
// statistics for a quick look at what a capture contains.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/gopacket/pcapgo"

	"github.com/axterm-radio/netwatch/internal/ax25"
	"github.com/axterm-radio/netwatch/internal/kiss"
)

// pcap link types carrying AX.25 frames.
const (
	linkTypeAX25     = 3   // raw AX.25
	linkTypeAX25KISS = 202 // AX.25 with a leading KISS command byte
)

var (
	inFile  = flag.String("in", "", "Input pcap file")
	outFile = flag.String("out", "", "Output KISS capture file (omit for stats only)")
	verbose = flag.Bool("v", false, "Log every decoded frame")
)

// extract pulls raw AX.25 frames out of a pcap stream, stripping the KISS
// command byte when the capture's link type includes it.
func extract(r *pcapgo.Reader) ([][]byte, error) {
	linkType := uint32(r.LinkType())
	if linkType != linkTypeAX25 && linkType != linkTypeAX25KISS {
		return nil, fmt.Errorf("unsupported link type %d (want AX.25)", linkType)
	}

	var frames [][]byte
	for {
		data, _, err := r.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read packet: %w", err)
		}
		if linkType == linkTypeAX25KISS {
			if len(data) < 1 {
				continue
			}
			data = data[1:]
		}
		frames = append(frames, data)
	}
	return frames, nil
}

// classCounts tallies decoded frames by classification. Undecodable frames
// count under "invalid".
func classCounts(frames [][]byte, ts time.Time, verbose bool) map[string]int {
	counts := make(map[string]int)
	for _, frame := range frames {
		ev, err := ax25.Decode(frame, ts)
		if err != nil {
			counts["invalid"]++
			continue
		}
		counts[ev.Class.String()]++
		if verbose {
			log.Printf("%s > %s via %v [%s] %d bytes", ev.From, ev.To, ev.Via, ev.Class, ev.PayloadLen)
		}
	}
	return counts
}

// writeKISS writes frames as a raw KISS byte stream.
func writeKISS(w io.Writer, frames [][]byte) error {
	for _, frame := range frames {
		if _, err := w.Write(kiss.BuildFrame(frame, 0)); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	flag.Parse()
	if *inFile == "" {
		log.Fatal("-in is required")
	}

	f, err := os.Open(*inFile)
	if err != nil {
		log.Fatalf("Failed to open pcap: %v", err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		log.Fatalf("Failed to parse pcap: %v", err)
	}

	frames, err := extract(r)
	if err != nil {
		log.Fatalf("Failed to extract frames: %v", err)
	}
	log.Printf("extracted %d frames from %s", len(frames), *inFile)

	counts := classCounts(frames, time.Now(), *verbose)
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-10s %d\n", name, counts[name])
	}

	if *outFile == "" {
		return
	}
	out, err := os.Create(*outFile)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	defer out.Close()
	if err := writeKISS(out, frames); err != nil {
		log.Fatalf("Failed to write KISS capture: %v", err)
	}
	log.Printf("wrote KISS capture to %s", *outFile)
}
