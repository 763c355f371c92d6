package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/config"
)

const usage = `Portfolio Admin CLI

Operator tool for portfolio collections. It talks to the configured stores
directly, so it needs the same environment as the server.

USAGE:
  portfolio-admin <command> [options] [arguments]

COMMANDS:
  list <collection>                         List the items of a collection
  renumber <collection>                     Sort and renumber items from 1
  reorder <collection> <id>...              Apply an explicit order (every id exactly once)
  import <collection> <file>                Upload a local file and register it
  delete-item <collection> <id>             Remove an item and its blobs
  delete-collection <collection> --yes      Delete every blob and the registry document
  check [collection...]                     Report corrupt documents, missing and orphaned blobs

OPTIONS:
  --json                     Output as JSON (list, check)
  --sort-by=<key>            created_at, created_at_desc, title or sequence (renumber)
  --title=<title>            Item title (import, defaults to the file name)
  --description=<text>       Item description (import)
  --thumbnail=<file>         Thumbnail to upload alongside (import)
  --content-type=<type>      Content type of the file (import)

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

EXAMPLES:
  portfolio-admin list drawings
  portfolio-admin renumber paintings --sort-by=title
  portfolio-admin import cv ./portrait.jpg --title="Portrait"
  portfolio-admin check --json
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		printHelp(os.Stdout)
		os.Exit(0)
	}

	cfg, err := config.Load(config.WithDotEnv(".env"), config.WithEnv())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	app, err := cfg.Build(ctx, logger, nil)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer app.Close(ctx)

	cli := &CLI{Service: app.Service, Out: os.Stdout}
	code, err := cli.Run(ctx, command, os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code == exitUsage {
			fmt.Fprintln(os.Stderr)
			fmt.Fprint(os.Stderr, usage)
		}
	}
	if code != exitOK {
		_ = app.Close(ctx)
		os.Exit(code)
	}
}

// printHelp prints the command usage followed by the environment variables.
func printHelp(w io.Writer) {
	header := usage + "\nENVIRONMENT VARIABLES:"
	cleanenv.FUsage(w, &config.ServerConfig{}, &header)()
}
