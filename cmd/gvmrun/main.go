// Command gvmrun executes a gvm64 bytecode image, optionally single-stepping
// it under an interactive debugger.
package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/kaelstrom/gvm64/emulator"
	"github.com/kaelstrom/gvm64/internal/vmerr"
	"github.com/spf13/cobra"
)

func main() {
	var debugMode bool
	var entry uint64

	rootCmd := &cobra.Command{
		Use:   "gvmrun <bytecode-file>",
		Short: "Run a gvm64 bytecode image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bytecode, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			e := emulator.WithBytecode(bytecode)
			e.SetIP(entry)
			if debugMode {
				runDebugMode(e)
				return nil
			}
			return runProgram(e)
		},
	}
	rootCmd.Flags().BoolVarP(&debugMode, "debug", "d", false, "single-step under an interactive debugger")
	rootCmd.Flags().Uint64VarP(&entry, "entry", "e", 0, "starting IP, past any leading data declared before the first instruction")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runProgram disables the garbage collector for the duration of execution,
// so no collection runs inside the hot loop, and afterwards restores the GC
// percentage from GOGC (100 when it is unset or not a number).
func runProgram(e *emulator.Emulator) error {
	key, ok := os.LookupEnv("GOGC")
	if !ok {
		key = "100"
	}
	gcPercent, err := strconv.ParseInt(key, 10, 32)
	if err != nil {
		gcPercent = 100
	}

	debug.SetGCPercent(-1)
	defer debug.SetGCPercent(int(gcPercent))

	runErr := e.Execute()
	if runErr != nil {
		return fmt.Errorf("execution halted at IP=%#x: %w", e.IP(), runErr)
	}
	fmt.Printf("exited after %d cycles, registers:\n%s\n", e.Cycle, e.Regs.String())
	return nil
}

func runDebugMode(e *emulator.Emulator) {
	fmt.Println("Commands:\n\tn or next: execute next instruction\n\tr or run: run to completion\n\tb or break <addr>: toggle a breakpoint at IP addr")
	printState(e)

	reader := bufio.NewReader(os.Stdin)
	waitForInput := true
	breakpoints := make(map[uint64]struct{})
	lastBreak := uint64(1) << 63

	for {
		line := ""
		if waitForInput {
			fmt.Print("\n-> ")
			line, _ = reader.ReadString('\n')
			line = strings.ToLower(strings.TrimSpace(line))
		} else if _, ok := breakpoints[e.IP()]; ok && e.IP() != lastBreak {
			fmt.Println("breakpoint")
			printState(e)
			waitForInput = true
			lastBreak = e.IP()
			continue
		}

		switch {
		case !waitForInput || line == "n" || line == "next":
			lastBreak = 1 << 63
			err := e.SingleStep()
			if waitForInput {
				printState(e)
			}
			if err != nil {
				if err == vmerr.Exit {
					fmt.Println("program exited")
				} else {
					fmt.Printf("halted at IP=%#x: %v\n", e.IP(), err)
				}
				return
			}

		case line == "r" || line == "run":
			waitForInput = false

		case strings.HasPrefix(line, "b"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				fmt.Println("usage: b <addr>")
				continue
			}
			addr, err := strconv.ParseUint(fields[1], 0, 64)
			if err != nil {
				fmt.Println("bad address:", err)
				continue
			}
			if _, ok := breakpoints[addr]; ok {
				delete(breakpoints, addr)
			} else {
				breakpoints[addr] = struct{}{}
			}
		}
	}
}

func printState(e *emulator.Emulator) {
	fmt.Printf("IP=%#x cycle=%d\n%s\n", e.IP(), e.Cycle, e.Regs.String())
}
