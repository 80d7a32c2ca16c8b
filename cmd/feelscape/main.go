package main

import "go.pilab.hu/feelscape/cmd/feelscape/cmd"

func main() {
	cmd.Execute()
}
