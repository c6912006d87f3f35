// keyway - on-screen keystroke and mouse-button visualizer
//
// keyway reads keyboard and pointer devices, groups near-simultaneous
// presses into chords and shows each chord as a short-lived overlay item:
//
//	keyway run              Run the visualizer
//	keyway devices          List input devices keyway can read
//	keyway parse <hotkey>   Check a hotkey string
//	keyway config <action>  Manage the settings file
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"keyway/internal/chord"
	"keyway/internal/input"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "run":
		cmdRun()
	case "devices":
		cmdDevices()
	case "parse":
		cmdParse()
	case "config":
		cmdConfig()
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`keyway - On-screen keystroke visualizer

USAGE:
    keyway <command> [options]

COMMANDS:
    run                 Read input devices and show chords as they happen
    devices             List keyboards and pointers and their capabilities
    parse <hotkey>      Print the canonical form of a hotkey string
    config <action>     Manage the settings file (path, init, show, validate,
                        migrate, schema)
    version             Show version information
    help                Show this help message

EXAMPLES:
    keyway run
    keyway run -position top-center -ttl-ms 1500 -disabled-app keepassxc
    keyway run -replay session.evdev -pace
    keyway parse "ctrl+shift+p"
    keyway config init

PERMISSIONS:
    Reading /dev/input/event* requires membership of the 'input' group
    (or an equivalent udev rule). keyway never stores which keys were pressed.

SIGNALS:
    SIGUSR1 toggles capture, like the pause hotkey.`)
}

func cmdVersion() {
	fmt.Printf("keyway %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func cmdDevices() {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	devicesFile := fs.String("devices-file", input.DefaultDevicesFile, "Kernel device listing to read")
	fs.Parse(os.Args[2:])

	devices, err := input.ListDevices(*devicesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Println("No keyboards or pointers found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tCAPS\tNAME")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Path, d.Caps, d.Name)
	}
	w.Flush()

	for _, d := range devices {
		if f, err := os.Open(d.Path); err != nil {
			if errors.Is(err, os.ErrPermission) {
				fmt.Fprintln(os.Stderr, "\nSome devices are not readable. Add your user to the 'input' group.")
				os.Exit(1)
			}
		} else {
			f.Close()
		}
	}
}

func cmdParse() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: keyway parse <hotkey>")
		os.Exit(1)
	}

	c, err := chord.Parse(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Canonical: %s\n", c.String())
	fmt.Printf("Label:     %s\n", c.Label())
	fmt.Printf("Kind:      %s\n", c.Kind())
}
