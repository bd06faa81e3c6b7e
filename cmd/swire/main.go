package main

import (
	"fmt"
	"os"

	"github.com/seawire/seawire/internal/cli/receiver"
	"github.com/seawire/seawire/internal/cli/sender"
)

const version = "v0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	if hasVersionFlag(args) {
		fmt.Printf("swire %s\n", version)
		return
	}

	switch args[0] {
	case "tx":
		sender.Run(args[1:])
	case "rx":
		receiver.Run(args[1:])
	default:
		if hasHelpFlag(args) {
			printUsage()
			return
		}
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: swire <command> [args]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  tx  send files to a peer")
	fmt.Fprintln(os.Stderr, "  rx  receive files from a peer")
	fmt.Fprintln(os.Stderr, "quick examples:")
	fmt.Fprintln(os.Stderr, "  swire tx report.pdf photos.zip")
	fmt.Fprintln(os.Stderr, "  swire rx --code GUITAR42 --out ./downloads")
	fmt.Fprintln(os.Stderr, "to learn detailed usage:")
	fmt.Fprintln(os.Stderr, "  swire tx --help")
	fmt.Fprintln(os.Stderr, "  swire rx --help")
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}
