package main

import "github.com/blobmux/blobmux/cmd"

func main() {
	cmd.Execute()
}
