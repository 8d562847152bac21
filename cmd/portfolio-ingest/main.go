// Package main is the entry point for the knowledge base ingestion command.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/smaxiso/portfolio-rag/cmd/portfolio-ingest/app"
)

func main() {
	app.NewApp().Run()
}
