package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/n7dr/irp/internal/encode"
	"github.com/n7dr/irp/internal/parser"
	"github.com/n7dr/irp/internal/vartable"
)

func runEncode(args []string, logger *log.Logger) error {
	fs := pflag.NewFlagSet("encode", pflag.ExitOnError)
	irpText := fs.String("irp", "", "IRP notation to encode")
	params := fs.StringArray("param", nil, "NAME=VALUE, repeatable")
	repeats := fs.Int("repeats", 0, "number of repeat frames to emit")
	fs.String("config", "", "path to a YAML config file (parsed by main)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *irpText == "" {
		return fmt.Errorf("encode: --irp is required")
	}

	proto, err := parser.Parse(*irpText)
	if err != nil {
		return fmt.Errorf("encode: parse: %w", err)
	}

	vars, err := parseParams(*params)
	if err != nil {
		return err
	}

	msg, err := encode.New(proto).Encode(vars, *repeats)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	logger.Info("encoded", "flashes", len(msg.Flashes()), "gaps", len(msg.Gaps()))
	fmt.Println(msg.String())
	return nil
}

func parseParams(raw []string) (*vartable.Table, error) {
	vars := vartable.New()
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("--param %q must be NAME=VALUE", kv)
		}
		v, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("--param %q: %w", kv, err)
		}
		vars.Set(strings.TrimSpace(parts[0]), v, 64)
	}
	return vars, nil
}
