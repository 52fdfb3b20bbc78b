package main

import "github.com/dmitrijs2005/medreport/internal/client/cli"

func main() {
	cli.Execute()
}
