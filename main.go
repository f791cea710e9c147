package main

import "github.com/KaramelBytes/crashscope/cmd"

func main() {
	cmd.Execute()
}
