package main

import "github.com/KaramelBytes/parish-explorer/cmd"

func main() {
	cmd.Execute()
}
