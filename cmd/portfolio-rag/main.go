// Package main is the entry point for the portfolio chat server.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/smaxiso/portfolio-rag/cmd/portfolio-rag/app"
)

func main() {
	app.NewApp().Run()
}
