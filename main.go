package main

import (
	"github.com/ValentinKolb/hIndex/cmd"
)

func main() {
	cmd.Execute()
}
