package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/looptide/looptide/engine"
)

var errQuit = errors.New("quit")

// editor is the editing role of a live session: it reads commands line by
// line and swaps graphs in the engine. It may block freely.
type editor struct {
	e   *engine.Engine
	out io.Writer
}

func newEditor(e *engine.Engine, out io.Writer) *editor {
	return &editor{e: e, out: out}
}

// run executes commands from in until quit, end of input or ctx is done.
// Quitting returns errQuit so that the rest of the session stops too.
func (ed *editor) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if err := ed.exec(line); err != nil {
				return err
			}
		}
	}
}

func (ed *editor) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	c := ed.e.Coordinator
	switch fields[0] {
	case "load":
		if len(fields) != 2 {
			fmt.Fprintln(ed.out, "usage: load <file>")
			return nil
		}
		if err := loadFile(c, fields[1]); err != nil {
			fmt.Fprintln(ed.out, err)
			return nil
		}
		ed.printSwap(c.Generation())
	case "hush":
		c.Hush()
		fmt.Fprintln(ed.out, "hushed")
	case "panic":
		c.Panic()
		fmt.Fprintln(ed.out, "panicked")
	case "stats":
		s := ed.e.Snapshot()
		fmt.Fprintf(ed.out, "generation %d, cycle %s\n", c.Generation(), c.Current().CyclePosition())
		fmt.Fprintf(ed.out, "queue %d/%d, underruns %d (%d samples), discarded %d\n",
			s.QueueLen, s.QueueCap, s.Underruns, s.UnderrunSamples, s.DiscardedSamples)
		fmt.Fprintf(ed.out, "blocks %d, block time %v (max %v), peak %.3f, rms %.3f\n",
			s.Blocks, s.BlockTimeLast, s.BlockTimeMax, s.Peak, s.RMS)
		fmt.Fprintf(ed.out, "swaps %d, transfer skips %d, compile errors %d, render panics %d\n",
			s.Swaps, s.TransferSkips, s.CompileErrors, s.RenderPanics)
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprintln(ed.out, "commands: load <file>, hush, panic, stats, quit")
	default:
		fmt.Fprintf(ed.out, "unknown command %q, try help\n", fields[0])
	}
	return nil
}

func (ed *editor) printSwap(generation uint64) {
	g := ed.e.Coordinator.Current()
	fmt.Fprintf(ed.out, "generation %d: %d nodes at cycle %s\n", generation, g.NodeCount(), g.CyclePosition())
	for _, w := range g.Warnings() {
		fmt.Fprintln(ed.out, w.String())
	}
}
