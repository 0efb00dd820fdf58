package main

import "github.com/papapumpkin/titlepatch/cmd"

func main() {
	cmd.Execute()
}
