package main

import "filetriage/cmd"

func main() {
	cmd.Execute()
}
