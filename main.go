package main

import "github.com/xiaoyuanzhu-com/bilisub/cli"

func main() {
	cli.Execute()
}
