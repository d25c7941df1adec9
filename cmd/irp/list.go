package main

import (
	"fmt"

	"github.com/n7dr/irp/internal/library"
)

func runList() {
	for _, e := range library.All {
		fmt.Printf("%-10s %s\n", e.Name, e.IRP)
	}
}
