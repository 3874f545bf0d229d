// Command deferplan traces blueprints into deferred-execution plans and
// replays them.
package main

import (
	"os"

	"github.com/roach88/deferplan/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
