package main

import "flipwatch/internal/cli"

func main() {
	cli.Execute()
}
