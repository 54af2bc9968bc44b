package main

import "github.com/xoverview/xoverview/cmd/xoverview/commands"

func main() {
	commands.Execute()
}
