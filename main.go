package main

import "blueprints-server/cli"

func main() {
	cli.Execute()
}
