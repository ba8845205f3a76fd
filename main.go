package main

import "github.com/keanucz/ffbins/cmd"

func main() {
	cmd.Execute()
}
