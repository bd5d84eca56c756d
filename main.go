package main

import "github.com/strangelove-ventures/permit2-distributor/cmd"

func main() {
	cmd.Execute()
}
