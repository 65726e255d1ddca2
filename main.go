package main

import "bag-sniper/cmd"

func main() {
	cmd.Execute()
}
