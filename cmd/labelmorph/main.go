package main

import "github.com/MeKo-Tech/labelmorph/internal/cmd"

func main() {
	cmd.Execute()
}
