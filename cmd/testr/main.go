package main

import "github.com/coalesceci/testr/cmd"

func main() {
	cmd.Execute()
}
