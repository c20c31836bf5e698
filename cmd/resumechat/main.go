// Command resumechat is the entry point for the resume chat service. One
// binary runs every process of the system: the HTTP API, the ingestion
// worker, and the semantic search tool server.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/resumechat/cmd/resumechat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
