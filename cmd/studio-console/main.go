package main

import "github.com/oshokin/studio-control/cmd/studio-console/cmd"

func main() {
	cmd.Execute()
}
