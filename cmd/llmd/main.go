package main

import "llmd/internal/cli"

func main() {
	cli.Execute()
}
