package main

import "github.com/thaiGO2003/DigiGO-sub000/cmd"

func main() {
	cmd.Execute()
}
