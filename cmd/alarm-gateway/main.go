package main

import "github.com/oshokin/alarm-gateway/cmd/alarm-gateway/cmd"

func main() {
	cmd.Execute()
}
