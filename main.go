package main

import "daypulse/internal/cli"

func main() {
	cli.Execute()
}
