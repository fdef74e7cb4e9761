package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

type StretchCommand struct {
	connectOpts
	Set  int `long:"set" description:"Write this stretch gain (1-127) instead of just reading"`
	Args struct {
		IDs []int `positional-arg-name:"servo-id"`
	} `positional-args:"yes"`
}

func (c *StretchCommand) Execute(args []string) error {
	ctx := context.Background()
	b, err := c.openBoard(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening controller: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	ids := servoArgs(c.Args.IDs)

	if c.Set > 0 {
		if err := b.SendStretch(ctx, c.Set, ids...); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting stretch gain: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("Stretch gain set to %d", c.Set)))
	}

	// Read back from the parameter mirror so a write is verified.
	if ids == nil {
		if ids, err = b.ServoIDs(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error scanning the servo bus: %v\n", err)
			os.Exit(1)
		}
	}
	gains, err := b.ReadStretch(ctx, ids...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stretch gains: %v\n", err)
		os.Exit(1)
	}

	rows := make([][]string, 0, len(ids))
	for i, id := range ids {
		rows = append(rows, []string{
			fmt.Sprintf("%d", id),
			fmt.Sprintf("%d", gains[i]),
		})
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableIDStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("ID", "Stretch").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 0 {
				return tableIDStyle
			}
			return tableCellStyle
		})
	fmt.Println(t.Render())
	return nil
}
