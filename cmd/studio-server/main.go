package main

import "github.com/oshokin/studio-control/cmd/studio-server/cmd"

func main() {
	cmd.Execute()
}
