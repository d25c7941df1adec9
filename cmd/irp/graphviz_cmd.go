package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/n7dr/irp/internal/nfa"
	"github.com/n7dr/irp/internal/parser"
)

func runGraphviz(args []string, logger *log.Logger) error {
	fs := pflag.NewFlagSet("graphviz", pflag.ExitOnError)
	irpText := fs.String("irp", "", "IRP notation to compile")
	fs.String("config", "", "path to a YAML config file (parsed by main)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *irpText == "" {
		return fmt.Errorf("graphviz: --irp is required")
	}
	proto, err := parser.Parse(*irpText)
	if err != nil {
		return fmt.Errorf("graphviz: parse: %w", err)
	}
	graph, err := nfa.Build(proto)
	if err != nil {
		return fmt.Errorf("graphviz: build automaton: %w", err)
	}
	logger.Info("compiled automaton", "states", len(graph.States))
	fmt.Println(nfa.Graphviz(graph))
	return nil
}
