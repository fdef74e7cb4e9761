// Command rcb4-watch streams joint angles from an RCB-4 controller to
// stdout, one line per sample. It is the headless counterpart of
// 'rcb4ctl monitor' for logging and piping.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/708yamaguchi/rcb4/pkg/monitor"
	"github.com/708yamaguchi/rcb4/pkg/rcb4"
)

func main() {
	// Parse command-line flags
	var (
		port    = flag.String("port", "", "Serial port (optional if rcb4.json exists)")
		baud    = flag.Int("baud", rcb4.DefaultBaudRate, "Baud rate")
		hz      = flag.Int("hz", 5, "Sampling frequency")
		rescan  = flag.Int("rescan-after", 5, "Consecutive read failures before a bus rescan")
		verbose = flag.Bool("verbose", false, "Debug logging")
	)
	flag.Parse()

	// Try to load config file if no port was specified
	portName := *port
	baudRate := *baud
	if portName == "" && rcb4.ConfigExists() {
		cfg, err := rcb4.LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot load %s: %v\n", rcb4.DefaultConfigFile, err)
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Run 'rcb4ctl scan --save' to detect and configure the port,")
			fmt.Fprintln(os.Stderr, "or specify it manually with -port")
			os.Exit(1)
		}
		portName = cfg.Port
		if cfg.BaudRate != 0 {
			baudRate = cfg.BaudRate
		}
		fmt.Fprintf(os.Stderr, "Loaded configuration from %s\n", rcb4.DefaultConfigFile)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	b := rcb4.New(rcb4.Config{
		Port:     portName,
		BaudRate: baudRate,
		Logger:   &logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ok bool
	var err error
	if portName == "" {
		ok, err = b.AutoOpen(ctx)
	} else {
		ok, err = b.Open(ctx)
	}
	if err != nil {
		log.Fatalf("Failed to open controller: %v", err)
	}
	if !ok {
		log.Fatalf("Controller on %s did not acknowledge (wrong baud rate?)", b.PortName())
	}
	defer b.Close()

	poller := monitor.New(b, monitor.Config{
		Hz:          *hz,
		RescanAfter: *rescan,
		Logger:      &logger,
	})

	// Start polling in background
	go func() {
		if err := poller.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Poller error: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nStopped.")
			return
		case msg := <-poller.Logs():
			fmt.Fprintln(os.Stderr, msg)
		case s := <-poller.States():
			cells := make([]string, len(s.Angles))
			for i, a := range s.Angles {
				cells[i] = fmt.Sprintf("%6.1f", a)
			}
			fmt.Printf("%s  seq %-6d [%s]  %5.1fms\n",
				s.Timestamp.Format("15:04:05.000"),
				s.Seq,
				strings.Join(cells, " "),
				float64(s.Latency.Microseconds())/1000)
		}
	}
}
