package main

import "github.com/kanta-app/cluster-faces/cmd"

func main() {
	cmd.Execute()
}
