package main

import "github.com/amarton5/SwiftOBD2/cmd"

func main() {
	cmd.Execute()
}
