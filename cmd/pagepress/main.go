package main

import (
	"github.com/local/pagepress/internal/cli"
	logpkg "github.com/local/pagepress/internal/logger"
)

func main() {
	defer logpkg.Close()
	cli.Execute()
}
