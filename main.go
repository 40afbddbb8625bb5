package main

import "github.com/trustless-academy/academy/cmd"

func main() {
	cmd.Execute()
}
