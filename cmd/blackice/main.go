package main

import "github.com/couchcryptid/black-ice-advisory/internal/cmd"

func main() {
	cmd.Execute()
}
