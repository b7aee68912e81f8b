// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command colgc-stress replays a recorded allocation trace through a
// colgc Group, mirroring the teacher's goat-sim: a read-only mmap of
// the input file feeds a streaming parser, and a spinner reports replay
// progress while the run plays out. It does not report heap occupancy;
// at the end it prints the number of commands replayed, the number of
// objects allocated and Group.CompactGeneration.
//
// A trace is a plain-text line protocol, one command per line:
//
//	A <cells> <type>   allocate <cells> cells tagged with registered TypeID <type>
//	P <id>             preserve the object allocated by the id-th A command (0-based)
//	R <id>             release a preserving reference previously taken with P
//	C <gen>            force a collection of at most generation <gen> (see Thread.Collect)
//
// Blank lines and lines starting with # are ignored.
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

	"github.com/fredericbonnet/colibri-sub002"
	"github.com/fredericbonnet/colibri-sub002/internal/progress"
)

var model string
var cellsPerObject int

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Replays a colgc allocation trace against a live Group.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <trace-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&model, "model", "single", "threading model: single, async, or shared")
	// 1<<20 is well past colgc.LargePageSize*colgc.AvailableCells, so the
	// default lets a trace exercise multi-page and dedicated-range
	// allocation instead of capping every A command at one page.
	flag.IntVar(&cellsPerObject, "max-cells", 1<<20, "reject A commands requesting more cells than this")
}

func threadingModel(name string) (colgc.ThreadingModel, error) {
	switch name {
	case "single":
		return colgc.ThreadingSingle, nil
	case "async":
		return colgc.ThreadingAsync, nil
	case "shared":
		return colgc.ThreadingShared, nil
	default:
		return 0, fmt.Errorf("unknown threading model %q", name)
	}
}

func run() error {
	if flag.NArg() != 1 {
		return errors.New("incorrect number of arguments")
	}
	tm, err := threadingModel(model)
	if err != nil {
		return err
	}

	r, err := mmap.Open(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to map trace: %v", err)
	}
	defer r.Close()

	group := colgc.NewGroup(tm)
	defer group.Close()

	thread, err := group.Enter()
	if err != nil {
		return fmt.Errorf("entering group: %v", err)
	}
	defer thread.Leave()

	objects := make([]colgc.Word, 0, 1024)

	src := io.NewSectionReader(r, 0, int64(r.Len()))
	scanner := bufio.NewScanner(src)

	var mu sync.Mutex
	var processed, total int
	lineCount := func() {
		mu.Lock()
		total++
		mu.Unlock()
	}
	for scanner.Scan() {
		lineCount()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning trace for length: %v", err)
	}

	scanner = bufio.NewScanner(io.NewSectionReader(r, 0, int64(r.Len())))
	progress.Start(func() float64 {
		mu.Lock()
		defer mu.Unlock()
		if total == 0 {
			return 1
		}
		return float64(processed) / float64(total)
	}, progress.Format("Replaying trace... %.2f%%"))

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
			n, typ, err := parseAlloc(fields)
			if err != nil {
				return fmt.Errorf("line %d: %v", lineNo, err)
			}
			if n > cellsPerObject {
				return fmt.Errorf("line %d: requested %d cells exceeds -max-cells=%d", lineNo, n, cellsPerObject)
			}
			addr, err := thread.AllocCells(typ, n)
			if err != nil {
				return fmt.Errorf("line %d: AllocCells: %v", lineNo, err)
			}
			objects = append(objects, colgc.FromAddress(addr))
		case "P":
			id, err := parseID(fields, objects)
			if err != nil {
				return fmt.Errorf("line %d: %v", lineNo, err)
			}
			group.Preserve(objects[id])
		case "R":
			id, err := parseID(fields, objects)
			if err != nil {
				return fmt.Errorf("line %d: %v", lineNo, err)
			}
			group.Release(objects[id])
		case "C":
			gen, err := parseGen(fields)
			if err != nil {
				return fmt.Errorf("line %d: %v", lineNo, err)
			}
			thread.Collect(gen)
		default:
			return fmt.Errorf("line %d: unknown command %q", lineNo, fields[0])
		}
	}
	progress.Stop()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning trace: %v", err)
	}

	fmt.Printf("replayed %d commands, %d objects allocated, compacted up to generation %d\n",
		lineNo, len(objects), group.CompactGeneration())
	return nil
}

func parseAlloc(fields []string) (n int, typ colgc.TypeID, err error) {
	if len(fields) != 3 {
		return 0, 0, fmt.Errorf("A requires 2 arguments, got %d", len(fields)-1)
	}
	cells, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cell count %q: %v", fields[1], err)
	}
	t, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid type id %q: %v", fields[2], err)
	}
	return cells, colgc.TypeID(t), nil
}

func parseID(fields []string, objects []colgc.Word) (int, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("%s requires 1 argument, got %d", fields[0], len(fields)-1)
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("invalid object id %q: %v", fields[1], err)
	}
	if id < 0 || id >= len(objects) {
		return 0, fmt.Errorf("object id %d out of range (have %d objects)", id, len(objects))
	}
	return id, nil
}

func parseGen(fields []string) (colgc.Generation, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("C requires 1 argument, got %d", len(fields)-1)
	}
	g, err := strconv.Atoi(fields[1])
	if err != nil || g < 0 || g >= colgc.GCMaxGenerations {
		return 0, fmt.Errorf("invalid generation %q", fields[1])
	}
	return colgc.Generation(g), nil
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
