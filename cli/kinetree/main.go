// Package main is the kinetree command itself.
package main

import (
	"log"
	"os"

	"github.com/kinetree/kinetree/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
