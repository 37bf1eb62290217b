// Command import loads curriculum items from an xlsx or CSV sheet into
// the graph store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/example/learncore/internal/config"
	"github.com/example/learncore/internal/excel"
	"github.com/example/learncore/internal/graph"
	"github.com/example/learncore/internal/logger"
)

func main() {
	var (
		filePath = flag.String("file", "", "path to the xlsx or csv file")
		sheet    = flag.String("sheet", "Sheet1", "sheet name for xlsx files")
		startRow = flag.Int("start-row", 2, "first data row (1-based)")
	)
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: import -file curriculum.xlsx [-sheet Sheet1] [-start-row 2]")
		os.Exit(2)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	client, err := graph.NewClient(graph.Config{
		URI:      cfg.Neo4jURI,
		User:     cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
		Timeout:  cfg.Neo4jTimeout,
		MaxPool:  cfg.Neo4jMaxPool,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to graph store", "error", err)
	}
	defer client.Close(ctx)

	if err := client.InitSchema(ctx); err != nil {
		log.Fatal("failed to initialize graph schema", "error", err)
	}

	importCfg := excel.DefaultImportConfig()
	importCfg.FilePath = *filePath
	importCfg.SheetName = *sheet
	importCfg.StartRow = *startRow

	store := graph.NewStore(client, log)
	result, err := excel.ImportItems(ctx, store, importCfg)
	if err != nil {
		log.Fatal("import failed", "error", err)
	}

	log.Info("import finished",
		"processed", result.TotalProcessed,
		"upserted", result.Upserted,
		"links", result.LinksCreated,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)
	for _, e := range result.Errors {
		log.Warn("import row error", "detail", e)
	}
}
