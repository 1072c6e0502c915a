package main

import "github.com/wardenhq/warden/cmd"

func main() {
	cmd.Execute()
}
