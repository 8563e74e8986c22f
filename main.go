package main

import "github.com/thrash-sh/thrash/cmd"

func main() {
	cmd.Execute()
}
