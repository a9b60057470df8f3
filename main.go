package main

import "github.com/iphands/llamafix-proxy/cmd"

func main() {
	cmd.Execute()
}
