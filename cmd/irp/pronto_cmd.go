package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/n7dr/irp/internal/encode"
	"github.com/n7dr/irp/internal/parser"
	"github.com/n7dr/irp/internal/pronto"
)

func runPronto(args []string, logger *log.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("pronto: expected \"encode\" or \"decode\"")
	}
	switch args[0] {
	case "encode":
		return prontoEncode(args[1:], logger)
	case "decode":
		return prontoDecode(args[1:], logger)
	default:
		return fmt.Errorf("pronto: unknown action %q", args[0])
	}
}

func prontoEncode(args []string, logger *log.Logger) error {
	fs := pflag.NewFlagSet("pronto encode", pflag.ExitOnError)
	irpText := fs.String("irp", "", "IRP notation to encode")
	params := fs.StringArray("param", nil, "NAME=VALUE, repeatable")
	introLen := fs.Int("intro-length", -1, "number of raw entries treated as the intro (default: whole message)")
	fs.String("config", "", "path to a YAML config file (parsed by main)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *irpText == "" {
		return fmt.Errorf("pronto encode: --irp is required")
	}
	proto, err := parser.Parse(*irpText)
	if err != nil {
		return fmt.Errorf("pronto encode: parse: %w", err)
	}
	vars, err := parseParams(*params)
	if err != nil {
		return err
	}
	msg, err := encode.New(proto).Encode(vars, 0)
	if err != nil {
		return fmt.Errorf("pronto encode: %w", err)
	}
	n := *introLen
	if n < 0 {
		n = len(msg.Raw)
	}
	code, err := pronto.EncodeFromMessage(msg, n)
	if err != nil {
		return fmt.Errorf("pronto encode: %w", err)
	}
	fmt.Println(code.String())
	return nil
}

func prontoDecode(args []string, logger *log.Logger) error {
	fs := pflag.NewFlagSet("pronto decode", pflag.ExitOnError)
	hex := fs.String("hex", "", "Pronto hex code")
	repeats := fs.Int("repeats", 0, "number of repeat frames to render")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *hex == "" {
		return fmt.Errorf("pronto decode: --hex is required")
	}
	code, err := pronto.Parse(*hex)
	if err != nil {
		return fmt.Errorf("pronto decode: %w", err)
	}
	msg := code.Encode(*repeats)
	if msg.Carrier != nil {
		logger.Info("decoded pronto", "carrier_hz", *msg.Carrier)
	}
	fmt.Println(msg.String())
	return nil
}
