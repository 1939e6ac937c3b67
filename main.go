package main

import "github.com/magent-cryptograss/magenta/cmd"

func main() {
	cmd.Execute()
}
