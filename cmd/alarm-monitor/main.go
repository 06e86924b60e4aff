package main

import "github.com/oshokin/studio-control/cmd/alarm-monitor/cmd"

func main() {
	cmd.Execute()
}
