package main

import "github.com/vietddude/stealthwatch/internal/cli"

func main() {
	cli.Execute()
}
