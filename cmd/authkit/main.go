// Package main is the entry point for the authkit CLI.
package main

import "github.com/wolfej94/authkit/internal/cli"

func main() {
	cli.Execute()
}
