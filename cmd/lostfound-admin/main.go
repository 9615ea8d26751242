package main

import "github.com/emiliopalmerini/lostfound-admin/internal/cli"

func main() {
	cli.Execute()
}
