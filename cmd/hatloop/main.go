package main

import "github.com/agusx1211/hatloop/internal/cli"

func main() {
	cli.Execute()
}
