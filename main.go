package main

import "github.com/user/gosec-posture/cmd"

func main() {
	cmd.Execute()
}
