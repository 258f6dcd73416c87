package main

import (
	"os"

	"github.com/lokascript/hyperfixi/cli"
)

func main() {
	os.Exit(cli.Main())
}
