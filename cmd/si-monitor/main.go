package main

import "si-monitor/cmd/si-monitor/cmd"

func main() {
	cmd.Execute()
}
