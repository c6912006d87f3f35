//go:build windows

package main

import "os"

// Windows has no SIGUSR1; capture is toggled with the pause hotkey only.
func notifyToggle(chan<- os.Signal) {}
