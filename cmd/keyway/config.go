package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"keyway/internal/config"
)

func cmdConfig() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, `Usage: keyway config <action> [options]

ACTIONS:
    path                 Print the settings file location
    init                 Write a default settings file if none exists
    show [-format f]     Print the effective settings (toml, json, yaml)
    validate             Check the settings file and report problems
    migrate              Rewrite an older settings file in the current layout
    schema               Print the JSON schema settings files are checked against

All actions accept -config <path>.`)
		os.Exit(1)
	}

	action := os.Args[2]
	fs := flag.NewFlagSet("config "+action, flag.ExitOnError)
	configPath := fs.String("config", "", "Settings file")
	format := fs.String("format", "toml", "Output format for show: toml, json, yaml")
	fs.Parse(os.Args[3:])

	path := *configPath
	if path == "" {
		if path = config.FindConfigFile(); path == "" {
			path = config.ConfigPath()
		}
	}

	switch action {
	case "path":
		fmt.Println(path)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "(does not exist yet; run 'keyway config init')")
		}

	case "init":
		_, created, err := config.LoadOrCreate(path)
		switch {
		case created:
			fmt.Printf("Wrote default settings to %s\n", path)
		case err != nil:
			fmt.Fprintf(os.Stderr, "Settings file exists but is invalid: %v\n", err)
			os.Exit(1)
		default:
			fmt.Printf("Settings file already exists: %s\n", path)
		}

	case "show":
		s, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		data, err := config.Encode(s, "."+*format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(data)

	case "validate":
		s, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid: %v\n", err)
			os.Exit(1)
		}
		var verrs config.ValidationErrors
		if errors.As(s.Validate(), &verrs) {
			for _, w := range verrs.Warnings() {
				fmt.Printf("warning: %s\n", w.Error())
			}
		}
		if _, err := s.Snapshot(); err != nil {
			fmt.Printf("warning: %v\n", err)
		}
		fmt.Printf("%s is valid\n", path)

	case "migrate":
		result, err := config.MigrateFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if result == nil {
			fmt.Println("Settings file is already current.")
			return
		}
		fmt.Printf("Migrated %s from version %d to %d\n", path, result.FromVersion, result.ToVersion)
		for _, c := range result.Changes {
			fmt.Printf("  - %s\n", c)
		}
		fmt.Printf("Backup: %s\n", result.Backup)

	case "schema":
		os.Stdout.Write(config.Schema())

	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		os.Exit(1)
	}
}
