package main

import "github.com/GeorgyFirsov/bcm-lib/cmd"

func main() {
	cmd.Execute()
}
