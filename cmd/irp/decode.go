package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/n7dr/irp/internal/config"
	"github.com/n7dr/irp/internal/nfa"
	"github.com/n7dr/irp/internal/parser"
	"github.com/n7dr/irp/internal/rawir"
)

func runDecode(args []string, cfg config.Config, logger *log.Logger) error {
	fs := pflag.NewFlagSet("decode", pflag.ExitOnError)
	irpText := fs.String("irp", "", "IRP notation to decode against")
	raw := fs.String("rawir", "", "raw IR text, e.g. \"+9024 -4512 +564 ...\"")
	fs.String("config", "", "path to a YAML config file (parsed by main)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *irpText == "" || *raw == "" {
		return fmt.Errorf("decode: --irp and --rawir are required")
	}

	proto, err := parser.Parse(*irpText)
	if err != nil {
		return fmt.Errorf("decode: parse: %w", err)
	}
	graph, err := nfa.Build(proto)
	if err != nil {
		return fmt.Errorf("decode: build automaton: %w", err)
	}
	durations, err := rawir.Parse(*raw)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	tol := nfa.Tolerance{
		AbsoluteUs:  cfg.Decode.AbsoluteToleranceUs,
		RelativePct: cfg.Decode.RelativeTolerancePct,
	}
	dec := nfa.NewDecoder(graph, proto.General.Order, tol)

	var results []map[string]int64
	for i, d := range durations {
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

func formatResult(r map[string]int64) string {
	s := ""
	for k, v := range r {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("%s=%d", k, v)
	}
	return s
}
