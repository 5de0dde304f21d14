package main

import "github.com/example/theorybot/cmd"

func main() {
	cmd.Execute()
}
