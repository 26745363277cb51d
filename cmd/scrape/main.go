// Offline world discovery. Reads the host's data directory straight off disk
// and prints what it finds; useful when the host itself is not running.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"sheetbridge.dev/internal/scraper"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "world" {
		worldCmd(os.Args[2:])
		return
	}
	discoverCmd(os.Args[1:])
}

func discoverCmd(args []string) {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	dataRoot := fs.String("data", "./data", "host data directory")
	_ = fs.Parse(args)

	worlds, err := scraper.Discover(*dataRoot)
	if err != nil {
		fmt.Fprintln(os.Stderr, "discover:", err)
		os.Exit(1)
	}
	printJSON(worlds)
}

func worldCmd(args []string) {
	fs := flag.NewFlagSet("world", flag.ExitOnError)
	path := fs.String("path", "", "world directory")
	_ = fs.Parse(args)

	if strings.TrimSpace(*path) == "" {
		fmt.Fprintln(os.Stderr, "missing -path")
		os.Exit(2)
	}
	rec, err := scraper.Scrape(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scrape:", err)
		os.Exit(1)
	}
	printJSON(rec)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
