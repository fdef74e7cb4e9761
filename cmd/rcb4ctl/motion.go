package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
)

type NeutralCommand struct {
	connectOpts
	Velocity int `long:"velocity" default:"127" description:"Frame velocity (1-255, lower is faster)"`
	Args     struct {
		IDs []int `positional-arg-name:"servo-id"`
	} `positional-args:"yes"`
}

func (c *NeutralCommand) Execute(args []string) error {
	ctx := context.Background()
	b, err := c.openBoard(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening controller: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	ids := servoArgs(c.Args.IDs)
	if err := b.Neutral(ctx, ids, c.Velocity); err != nil {
		fmt.Fprintf(os.Stderr, "Error sending neutral pose: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(successStyle.Render("Servos moving to the zero pose"))
	return nil
}

type HoldCommand struct {
	connectOpts
	Args struct {
		IDs []int `positional-arg-name:"servo-id"`
	} `positional-args:"yes"`
}

func (c *HoldCommand) Execute(args []string) error {
	ctx := context.Background()
	b, err := c.openBoard(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening controller: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	if err := b.Hold(ctx, servoArgs(c.Args.IDs)...); err != nil {
		fmt.Fprintf(os.Stderr, "Error holding servos: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(successStyle.Render("Servos holding their current positions"))
	return nil
}

type FreeCommand struct {
	connectOpts
	Yes  bool `long:"yes" short:"y" description:"Skip the confirmation prompt"`
	Args struct {
		IDs []int `positional-arg-name:"servo-id"`
	} `positional-args:"yes"`
}

func (c *FreeCommand) Execute(args []string) error {
	if !c.Yes {
		var confirmed bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Release servo torque?").
					Description("Unsupported joints will drop under gravity.").
					Affirmative("Release").
					Negative("Cancel").
					Value(&confirmed),
			),
		)
		if err := form.Run(); err != nil {
			fmt.Println()
			os.Exit(0)
		}
		if !confirmed {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	ctx := context.Background()
	b, err := c.openBoard(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening controller: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	if err := b.Free(ctx, servoArgs(c.Args.IDs)...); err != nil {
		fmt.Fprintf(os.Stderr, "Error freeing servos: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(successStyle.Render("Servo torque released"))
	return nil
}
