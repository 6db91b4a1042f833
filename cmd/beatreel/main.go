package main

import "github.com/forPelevin/beatreel/internal/cli"

func main() {
	cli.Main()
}
