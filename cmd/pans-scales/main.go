package main

import "github.com/pans-scales-server/internal/cli"

func main() {
	cli.Execute()
}
