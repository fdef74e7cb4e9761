package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"

	"github.com/708yamaguchi/rcb4/pkg/rcb4"
)

// connectOpts are the serial settings shared by every subcommand.
type connectOpts struct {
	Port    string `long:"port" short:"p" description:"Serial port (default: scan USB for an RCB-4 adapter)"`
	Baud    int    `long:"baud" default:"1250000" description:"Baud rate"`
	Verbose bool   `long:"verbose" short:"v" description:"Debug logging"`
}

// openBoard connects to the controller, auto-discovering the USB adapter
// when no port was given. With several adapters attached the user picks one.
func (o *connectOpts) openBoard(ctx context.Context) (*rcb4.Board, error) {
	level := zerolog.WarnLevel
	if o.Verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	port := o.Port
	if port == "" {
		if names, err := rcb4.DetectPorts(); err == nil && len(names) > 1 {
			port = pickPort(names)
		}
	}

	b := rcb4.New(rcb4.Config{
		Port:     port,
		BaudRate: o.Baud,
		Logger:   &logger,
	})

	var ok bool
	var err error
	if port == "" {
		ok, err = b.AutoOpen(ctx)
	} else {
		ok, err = b.Open(ctx)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		b.Close()
		return nil, fmt.Errorf("controller on %s did not acknowledge (wrong baud rate?)", b.PortName())
	}
	return b, nil
}

// pickPort asks which adapter to use when more than one RCB-4 is attached.
func pickPort(names []string) string {
	var options []huh.Option[string]
	for _, name := range names {
		options = append(options, huh.NewOption(name, name))
	}

	var port string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Multiple RCB-4 adapters found").
				Description("Select the serial port to use").
				Options(options...).
				Value(&port),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	return port
}

// servoArgs normalizes positional servo IDs: none given means all discovered.
func servoArgs(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	return ids
}
