package main

import "slidesync/cmd/slidesync/cmd"

func main() {
	cmd.Execute()
}
