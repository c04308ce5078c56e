package main

import "github.com/researchaccelerator-hub/channel-aggregator/cmd"

func main() {
	cmd.Execute()
}
