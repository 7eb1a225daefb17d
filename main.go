package main

import (
	"github.com/AzielCF/az-wrap/cmd"
)

func main() {
	cmd.Execute()
}
