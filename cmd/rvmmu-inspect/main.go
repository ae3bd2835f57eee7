// Command rvmmu-inspect is an interactive single-step translation
// inspector: it loads a machine config, then lets an operator type
// vaddr/op commands at a raw terminal and see, for each one, whether the
// access succeeded, the bytes it returned, and any trap it raised. Raw-mode handling follows the pack's cmd/cc raw
// terminal dance (golang.org/x/term); config hot reload follows the
// fsnotify watcher-goroutine shape in
// internal/runtime/vfs/watch_fsnotify.go of the reference pack.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/term"

	"github.com/tinyrange/rvmmu/internal/mmu"
	"github.com/tinyrange/rvmmu/internal/mmuconfig"
)

type inspector struct {
	cfgPath string
	pam     *mmu.PAM
	hart    *mmu.Hart
	satp    uint64
	root    uint64
}

func newInspector(cfgPath string) (*inspector, error) {
	insp := &inspector{cfgPath: cfgPath}
	if err := insp.reload(); err != nil {
		return nil, err
	}
	return insp, nil
}

// reload quiesces the current machine (there is only ever one hart here, so
// quiescence is just "don't call Access concurrently with this") and swaps
// in a freshly built PAM and hart, per spec.md §5's reconfiguration window.
func (insp *inspector) reload() error {
	cfg, err := mmuconfig.Load(insp.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pam, err := mmuconfig.BuildPAM(cfg)
	if err != nil {
		return fmt.Errorf("build pam: %w", err)
	}

	if insp.pam != nil {
		insp.pam.Close()
	}

	raiser := mmu.TrapRaiserFunc(func(cause, tval uint64) {
		fmt.Printf("\r\ntrap: cause=%d tval=0x%x\r\n", cause, tval)
	})
	h := mmu.NewHart(pam, cfg.TLBEntries, raiser)
	h.PrivMode = mmu.PrivSupervisor

	insp.pam = pam
	insp.hart = h
	return nil
}

func (insp *inspector) setMode(name string) error {
	var satp uint64
	switch name {
	case "bare":
		satp = mmu.SatpModeBare
	case "sv32":
		satp = mmu.SatpModeSv32
	case "sv39":
		satp = mmu.SatpModeSv39
	case "sv48":
		satp = mmu.SatpModeSv48
	case "sv57":
		satp = mmu.SatpModeSv57
	default:
		return fmt.Errorf("unknown mode %q", name)
	}
	insp.hart.MMUMode = satp
	return nil
}

func (insp *inspector) handleLine(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "mode":
		if len(fields) != 2 {
			fmt.Println("usage: mode <bare|sv32|sv39|sv48|sv57>")
			return
		}
		if err := insp.setMode(fields[1]); err != nil {
			fmt.Println(err)
		}
	case "root":
		if len(fields) != 2 {
			fmt.Println("usage: root <hex physical address>")
			return
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
		if err != nil {
			fmt.Println(err)
			return
		}
		insp.hart.RootPageTable = v
	case "read", "write", "exec":
		if len(fields) != 2 {
			fmt.Println("usage: <read|write|exec> <hex vaddr>")
			return
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
		if err != nil {
			fmt.Println(err)
			return
		}
		op := map[string]mmu.AccessKind{"read": mmu.AccessRead, "write": mmu.AccessWrite, "exec": mmu.AccessExec}[fields[0]]
		buf := make([]byte, 8)
		ok := insp.hart.Access(v, buf, op)
		fmt.Printf("%s 0x%x -> ok=%v buf=%x\r\n", fields[0], v, ok, buf)
	case "flush":
		insp.hart.FlushTLB()
		fmt.Println("TLB flushed")
	default:
		fmt.Printf("unknown command %q\r\n", fields[0])
	}
}

func run() error {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to a machine YAML config")
	watch := fs.Bool("watch", true, "hot-reload the config on change")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("parse args: %w", err)
	}
	if *cfgPath == "" {
		return fmt.Errorf("-config is required")
	}

	insp, err := newInspector(*cfgPath)
	if err != nil {
		return err
	}

	if *watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("new watcher: %w", err)
		}
		defer w.Close()
		if err := w.Add(*cfgPath); err != nil {
			return fmt.Errorf("watch %s: %w", *cfgPath, err)
		}
		go func() {
			for {
				select {
				case ev, ok := <-w.Events:
					if !ok {
						return
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
					if err := insp.reload(); err != nil {
						slog.Error("config reload failed", "error", err)
						continue
					}
					fmt.Printf("\r\nconfig reloaded from %s\r\n", *cfgPath)
				case err, ok := <-w.Errors:
					if !ok {
						return
					}
					slog.Error("watcher error", "error", err)
				}
			}
		}()
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("enable raw mode: %w", err)
		}
		defer term.Restore(fd, oldState)
	}

	scanner := bufio.NewScanner(rawLineReader{os.Stdin})
	fmt.Print("rvmmu-inspect> ")
	for scanner.Scan() {
		insp.handleLine(scanner.Text())
		fmt.Print("\r\nrvmmu-inspect> ")
	}
	return scanner.Err()
}

// rawLineReader turns a raw-mode terminal's bare \r into \n so bufio.Scanner
// can still split on lines.
type rawLineReader struct{ r *os.File }

func (rl rawLineReader) Read(p []byte) (int, error) {
	n, err := rl.r.Read(p)
	for i := 0; i < n; i++ {
		if p[i] == '\r' {
			p[i] = '\n'
		}
	}
	return n, err
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rvmmu-inspect: %v\n", err)
		os.Exit(1)
	}
}
