// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command colgc-size-dist replays the same trace format colgc-stress
// understands and writes periodic snapshots of the cell-count
// distribution across currently-preserved objects, adapted from the
// teacher's goat-size-dist (which tracked a Go-runtime allocation
// trace's byte-size distribution the same way).
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/exp/mmap"

	"github.com/fredericbonnet/colibri-sub002/internal/progress"
)

var (
	outputFile string
	period     int
	cumulative bool
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Generates a cell-count distribution from a colgc-stress trace.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <trace-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&outputFile, "o", "./size.data", "location to write output file")
	flag.IntVar(&period, "period", 1000, "number of trace commands between distribution snapshots")
	flag.BoolVar(&cumulative, "cum", false, "accumulate a total distribution instead of tracking current liveness")
}

func run() error {
	if flag.NArg() != 1 {
		return errors.New("incorrect number of arguments")
	}

	r, err := mmap.Open(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to map trace: %v", err)
	}
	defer r.Close()

	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("creating data file: %v", err)
	}
	defer out.Close()

	src := io.NewSectionReader(r, 0, int64(r.Len()))

	var mu sync.Mutex
	var processed, total int
	counter := bufio.NewScanner(io.NewSectionReader(r, 0, int64(r.Len())))
	for counter.Scan() {
		total++
	}
	if err := counter.Err(); err != nil {
		return fmt.Errorf("scanning trace for length: %v", err)
	}

	progress.Start(func() float64 {
		mu.Lock()
		defer mu.Unlock()
		if total == 0 {
			return 1
		}
		return float64(processed) / float64(total)
	}, progress.Format("Processing... %.2f%%"))

	hist := NewCellHist()
	var sizes []int // cell count of the i-th allocated object

	scanner := bufio.NewScanner(src)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		mu.Lock()
		processed++
		mu.Unlock()

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "A":
			if len(fields) != 3 {
				return fmt.Errorf("line %d: A requires 2 arguments", lineNo)
			}
			cells, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("line %d: invalid cell count: %v", lineNo, err)
			}
			sizes = append(sizes, cells)
		case "P":
			id, err := objectID(fields, len(sizes))
			if err != nil {
				return fmt.Errorf("line %d: %v", lineNo, err)
			}
			hist.Add(sizes[id])
		case "R":
			if cumulative {
				continue
			}
			id, err := objectID(fields, len(sizes))
			if err != nil {
				return fmt.Errorf("line %d: %v", lineNo, err)
			}
			hist.Sub(sizes[id])
		case "C":
			// Collections don't change which objects are preserved.
		default:
			return fmt.Errorf("line %d: unknown command %q", lineNo, fields[0])
		}

		if lineNo%period == 0 {
			fmt.Fprintf(out, ">%d\n", lineNo)
			hist.ForEach(func(cells int, count uint64) {
				fmt.Fprintf(out, "%d:%d\n", cells, count)
			})
			out.Sync()
		}
	}
	progress.Stop()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning trace: %v", err)
	}
	return nil
}

func objectID(fields []string, n int) (int, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("%s requires 1 argument", fields[0])
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("invalid object id %q: %v", fields[1], err)
	}
	if id < 0 || id >= n {
		return 0, fmt.Errorf("object id %d out of range (have %d objects)", id, n)
	}
	return id, nil
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
