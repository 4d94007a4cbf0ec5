package main

import "github.com/vietddude/dal/internal/cli"

func main() {
	cli.Execute()
}
