package main

import "github.com/jmehdipour/linkdb/cmd"

func main() {
	cmd.Execute()
}
