// Command kese is the CLI collaborator spec.md §6 describes: a
// config-driven REPL over a keSE index supporting the `index`, `save`,
// `load`, `metadata`, `query <string>`, and `quit` commands.
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config.json")
	flag.Parse()

	code := run(*configPath, os.Stdin, os.Stdout)
	if code != 0 {
		fmt.Fprintf(os.Stderr, "kese: exiting with code %d\n", code)
	}
	os.Exit(code)
}
