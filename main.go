package main

import "teamtree/cmd"

func main() {
	cmd.Execute()
}
