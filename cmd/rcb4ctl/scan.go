package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/708yamaguchi/rcb4/pkg/rcb4"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type ScanCommand struct {
	connectOpts
	Save bool `long:"save" description:"Save the result to rcb4.json"`
}

func (c *ScanCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("RCB-4 Bus Scan"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

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
	fmt.Printf("Controller on %s: %s\n\n", b.PortName(), version)

	ids, err := b.Discover(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning the servo bus: %v\n", err)
		os.Exit(1)
	}
	if len(ids) == 0 {
		fmt.Println(warnStyle.Render("No servos found. Check servo power and ICS wiring."))
		os.Exit(1)
	}

	angles, err := b.AngleVector(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading servo angles: %v\n", err)
		os.Exit(1)
	}
	refs, err := b.ReferenceVector(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading reference positions: %v\n", err)
		os.Exit(1)
	}
	faults, err := b.ServoErrors(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading servo errors: %v\n", err)
		os.Exit(1)
	}
	active, err := b.ServoStates(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading servo states: %v\n", err)
		os.Exit(1)
	}
	holding := make(map[int]bool, len(active))
	for _, id := range active {
		holding[id] = true
	}

	rows := make([][]string, 0, len(ids))
	for i, id := range ids {
		torque := "free"
		if holding[id] {
			torque = "on"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", id),
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%.1f", angles[i]),
			fmt.Sprintf("%d", refs[i]),
			fmt.Sprintf("0x%04X", faults[i]),
			torque,
		})
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableIDStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableAngleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableTorqueOnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableTorqueOffStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("ID", "Index", "Angle (deg)", "Reference", "Error", "Torque").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableIDStyle
			case 2:
				return tableAngleStyle
			case 5:
				if row >= 0 && row < len(ids) && holding[ids[row]] {
					return tableTorqueOnStyle
				}
				return tableTorqueOffStyle
			default:
				return tableCellStyle
			}
		})
	fmt.Println(t.Render())
	fmt.Println(successStyle.Render(fmt.Sprintf("%d servos on the bus", len(ids))))

	if c.Save {
		cfg := &rcb4.Config{
			Port:     b.PortName(),
			BaudRate: c.Baud,
			ServoIDs: ids,
		}
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		fmt.Println("Configuration saved to " + headerStyle.Render(rcb4.DefaultConfigFile))
	}
	return nil
}
