package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Scan     ScanCommand     `command:"scan" description:"Discover servos and show their state"`
	Firmware FirmwareCommand `command:"firmware" description:"Show the controller firmware identity"`
	Monitor  MonitorCommand  `command:"monitor" alias:"mon" description:"Live joint angle chart"`
	Neutral  NeutralCommand  `command:"neutral" description:"Move servos to the zero pose"`
	Hold     HoldCommand     `command:"hold" description:"Lock servos at their current positions"`
	Free     FreeCommand     `command:"free" description:"Release servo torque"`
	Stretch  StretchCommand  `command:"stretch" description:"Read or set servo stretch gains"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "rcb4ctl - Command line control for Kondo RCB-4 servo controllers"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
