// Command lustrec compiles a synchronous dataflow program to Go.
package main

import (
	"os"

	"github.com/emersion/rustre/cmd/lustrec/cmd"
)

func main() {
	os.Exit(cmd.Main())
}
