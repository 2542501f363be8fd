package main

import "github.com/ValentinKolb/dChain/cmd"

func main() {
	cmd.Execute()
}
