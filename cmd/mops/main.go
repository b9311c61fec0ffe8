package main

import "github.com/jvs-project/mops/internal/cli"

func main() {
	cli.Execute()
}
