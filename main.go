package main

import "bugsage/cmd"

func main() {
	cmd.Execute()
}
