package main

import "github.com/example/railsched/cmd"

func main() {
	cmd.Execute()
}
