package main

import (
	"github.com/turtacn/mfagate/cmd/cli"
)

// main is the entry point for the mfagate-admin command-line tool.
// main 是 mfagate-admin 命令行工具的入口点。
func main() {
	cli.Execute()
}
