package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/n7dr/irp/internal/config"
	"github.com/n7dr/irp/internal/mode2"
	"github.com/n7dr/irp/internal/nfa"
	"github.com/n7dr/irp/internal/parser"
)

func runMode2(args []string, cfg config.Config, logger *log.Logger) error {
	if len(args) == 0 || args[0] != "decode" {
		return fmt.Errorf("mode2: expected \"decode\"")
	}
	fs := pflag.NewFlagSet("mode2 decode", pflag.ExitOnError)
	irpText := fs.String("irp", "", "IRP notation to decode against")
	file := fs.String("file", "", "path to a mode2-format capture")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *irpText == "" || *file == "" {
		return fmt.Errorf("mode2 decode: --irp and --file are required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("mode2 decode: %w", err)
	}
	msg, err := mode2.Parse(string(data))
	if err != nil {
		return fmt.Errorf("mode2 decode: %w", err)
	}

	proto, err := parser.Parse(*irpText)
	if err != nil {
		return fmt.Errorf("mode2 decode: parse: %w", err)
	}
	graph, err := nfa.Build(proto)
	if err != nil {
		return fmt.Errorf("mode2 decode: build automaton: %w", err)
	}

	tol := nfa.Tolerance{AbsoluteUs: cfg.Decode.AbsoluteToleranceUs, RelativePct: cfg.Decode.RelativeTolerancePct}
	dec := nfa.NewDecoder(graph, proto.General.Order, tol)

	var results []map[string]int64
	for i, d := range msg.Raw {
		results = append(results, dec.Step(nfa.Event{Flash: i%2 == 0, Us: int64(d)})...)
	}
	if len(results) == 0 {
		logger.Warn("no match")
		return nil
	}
	for _, r := range results {
		fmt.Println(formatResult(r))
	}
	return nil
}
