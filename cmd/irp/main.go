// Command irp is a small command-line front end over the IRP
// compiler/runtime: encode a protocol to raw IR or Pronto hex, decode
// a captured waveform back into parameters, or dump a protocol's
// decode automaton as Graphviz DOT.
package main

import (
	"fmt"
	"os"

	"github.com/n7dr/irp/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	cfg := config.Default()
	// A light pre-scan for --config so subcommands don't each need to
	// know about it before parsing their own flags.
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			var err error
			cfg, err = config.Load(args[i+1])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var runErr error
	switch cmd {
	case "encode":
		runErr = runEncode(args, logger)
	case "decode":
		runErr = runDecode(args, cfg, logger)
	case "pronto":
		runErr = runPronto(args, logger)
	case "mode2":
		runErr = runMode2(args, cfg, logger)
	case "graphviz":
		runErr = runGraphviz(args, logger)
	case "list":
		runList()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if runErr != nil {
		logger.Error("command failed", "err", runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `irp — IRP notation compiler and runtime

Usage:
  irp encode   --irp <notation> [--param K=V ...] [--repeats N]
  irp decode   --irp <notation> --rawir "<+N -N ...>"
  irp pronto   encode --irp <notation> [--param K=V ...]
  irp pronto   decode --hex "<pronto hex>"
  irp mode2    decode --irp <notation> --file <mode2.txt>
  irp graphviz --irp <notation>
  irp list

Flags common to most subcommands:
  --config <path>   load decoder tolerances / log settings from YAML`)
}
