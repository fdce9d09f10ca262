package main

import "go.echoid.dev/verify/cmd/wallet/cmd"

func main() {
	cmd.Execute()
}
