package main

import "github.com/emrgen/communication/cmd"

func main() {
	cmd.Execute()
}
