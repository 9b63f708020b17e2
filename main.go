package main

import "github.com/stempede/stempede-api/cmd"

func main() {
	cmd.Execute()
}
