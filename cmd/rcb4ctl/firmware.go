package main

import (
	"context"
	"fmt"
	"os"
	"time"
)

type FirmwareCommand struct {
	connectOpts
}

func (c *FirmwareCommand) Execute(args []string) error {
	ctx := context.Background()
	b, err := c.openBoard(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening controller: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	version, err := b.FirmwareVersion(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading firmware version: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	ok, err := b.Ack(ctx)
	latency := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error checking acknowledge: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Port:      %s\n", b.PortName())
	fmt.Printf("Firmware:  %s\n", version)
	fmt.Printf("Ack:       %v (round trip %s)\n", ok, latency.Round(time.Microsecond))
	return nil
}
