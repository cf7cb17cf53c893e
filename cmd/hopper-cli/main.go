// Command hopper-cli inspects a hopper channel directory (C3) offline: it
// reads the length-prefixed frame files directly off disk without going
// through internal/hopper's Sender/Receiver handoff, the way tempo-cli
// reads tempodb blocks directly off a backend rather than through a live
// ingester.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/facette/natsort"
	"github.com/hopperd/hopper/internal/metric"
	"github.com/olekukonko/tablewriter"
)

const lengthPrefixSize = 4

var (
	channelDir string
	dumpLimit  int
	kindFilter string
)

func init() {
	flag.StringVar(&channelDir, "channel", "", "path to a hopper channel directory")
	flag.IntVar(&dumpLimit, "limit", 20, "max frames to print with the dump command")
	flag.StringVar(&kindFilter, "kind", "", "only dump frames of this kind (telemetry/log/raw/timer_flush/shutdown)")
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Println("usage: hopper-cli [-channel dir] <list|dump> [args]")
		os.Exit(2)
	}

	if channelDir == "" {
		fmt.Println("-channel is required")
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "list":
		err = listSegments(channelDir)
	case "dump":
		err = dumpFrames(channelDir, kindFilter, dumpLimit)
	default:
		fmt.Printf("unknown command %q\n", args[0])
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// segmentFiles returns the channel's queue file names in ascending
// sequence order, mirroring the natural sort internal/hopper relies on
// to hand off rollover between senders.
func segmentFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading channel directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := strconv.ParseInt(e.Name(), 10, 64); err != nil {
			continue
		}
		names = append(names, e.Name())
	}
	natsort.Sort(names)
	return names, nil
}

type segmentStat struct {
	name     string
	bytes    int64
	frames   int
	byKind   map[string]int
	corrupt  bool
	readOnly bool
}

func statSegment(path string) (segmentStat, error) {
	st := segmentStat{name: filepath.Base(path), byKind: map[string]int{}}

	fi, err := os.Stat(path)
	if err != nil {
		return st, err
	}
	st.bytes = fi.Size()
	st.readOnly = fi.Mode().Perm()&0o200 == 0

	f, err := os.Open(path)
	if err != nil {
		return st, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		var lenBuf [lengthPrefixSize]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				// a sender was mid-write when this file was scanned
				break
			}
			return st, err
		}

		length := binary.BigEndian.Uint32(lenBuf[:])
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			st.corrupt = true
			break
		}

		ev, err := metric.Decode(payload)
		if err != nil {
			st.corrupt = true
			break
		}

		st.frames++
		st.byKind[ev.Kind().String()]++
	}

	return st, nil
}

func listSegments(dir string) error {
	names, err := segmentFiles(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("channel is empty")
		return nil
	}

	kinds := map[string]struct{}{}
	stats := make([]segmentStat, 0, len(names))
	for _, n := range names {
		st, err := statSegment(filepath.Join(dir, n))
		if err != nil {
			return fmt.Errorf("segment %s: %w", n, err)
		}
		stats = append(stats, st)
		for k := range st.byKind {
			kinds[k] = struct{}{}
		}
	}

	kindCols := make([]string, 0, len(kinds))
	for k := range kinds {
		kindCols = append(kindCols, k)
	}
	sort.Strings(kindCols)

	header := append([]string{"segment", "bytes", "frames", "writable"}, kindCols...)
	w := tablewriter.NewWriter(os.Stdout)
	w.SetHeader(header)

	var totalBytes, totalFrames int64
	for _, st := range stats {
		row := []string{
			st.name,
			humanize.Bytes(uint64(st.bytes)),
			strconv.Itoa(st.frames),
			strconv.FormatBool(!st.readOnly),
		}
		for _, k := range kindCols {
			row = append(row, strconv.Itoa(st.byKind[k]))
		}
		if st.corrupt {
			row[0] = st.name + " (corrupt tail)"
		}
		w.Append(row)
		totalBytes += st.bytes
		totalFrames += int64(st.frames)
	}

	footer := append([]string{"", humanize.Bytes(uint64(totalBytes)), strconv.FormatInt(totalFrames, 10), ""}, make([]string, len(kindCols))...)
	w.SetFooter(footer)
	w.Render()

	return nil
}

func dumpFrames(dir, kind string, limit int) error {
	names, err := segmentFiles(dir)
	if err != nil {
		return err
	}

	w := tablewriter.NewWriter(os.Stdout)
	w.SetHeader([]string{"segment", "kind", "name/path", "value"})

	printed := 0
	for _, n := range names {
		if printed >= limit {
			break
		}
		path := filepath.Join(dir, n)
		f, err := os.Open(path)
		if err != nil {
			return err
		}

		r := bufio.NewReader(f)
		for printed < limit {
			var lenBuf [lengthPrefixSize]byte
			if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
				break
			}
			length := binary.BigEndian.Uint32(lenBuf[:])
			payload := make([]byte, length)
			if _, err := io.ReadFull(r, payload); err != nil {
				break
			}
			ev, err := metric.Decode(payload)
			if err != nil {
				break
			}

			if kind != "" && ev.Kind().String() != kind {
				continue
			}

			w.Append(frameRow(n, ev))
			printed++
		}
		f.Close()
	}

	w.Render()
	return nil
}

func frameRow(segment string, ev metric.Event) []string {
	switch ev.Kind() {
	case metric.EventTelemetry:
		t := ev.Telemetry()
		value := "?"
		if v, ok := t.Set(); ok {
			value = strconv.FormatFloat(v, 'g', -1, 64)
		} else if v, ok := t.Sum(); ok {
			value = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return []string{segment, ev.Kind().String(), t.Name(), value}
	case metric.EventLog:
		l := ev.Log()
		return []string{segment, ev.Kind().String(), l.Path(), l.Value()}
	case metric.EventRaw:
		p := ev.Raw()
		return []string{segment, ev.Kind().String(), p.Encoding, strconv.Itoa(len(p.Bytes)) + " bytes"}
	default:
		return []string{segment, ev.Kind().String(), "-", "-"}
	}
}
