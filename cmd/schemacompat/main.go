package main

import "github.com/platinummonkey/schemacompat/pkg/cli"

func main() {
	cli.Execute()
}
