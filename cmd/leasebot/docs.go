package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"leasebot/internal/knowledge"
	"leasebot/internal/provider"
	"leasebot/internal/storage"

	"github.com/spf13/cobra"
)

func docsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage the indexed agreement documents",
	}
	cmd.AddCommand(docsIngestCmd())
	cmd.AddCommand(docsListCmd())
	cmd.AddCommand(docsDeleteCmd())
	return cmd
}

// docsEngine opens the store and builds a query engine for the document
// subcommands. The oracle is only needed when answering, so ingestion
// works without a configured provider.
func docsEngine() (*knowledge.Engine, *storage.SQLiteStore, error) {
	cfg := loadConfig()
	store, err := storage.NewSQLiteStore(cfg.DBPath(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	provFactory := provider.NewFactory(cfg, logger)
	prov, _ := provFactory.Default()
	var engineCfg = knowledge.EngineConfig{
		Store:     store,
		Retriever: store,
		TopK:      cfg.Knowledge.TopK,
		ChunkSize: cfg.Knowledge.ChunkSize,
		Overlap:   cfg.Knowledge.Overlap,
		Logger:    logger,
	}
	if prov != nil {
		engineCfg.Oracle = provider.NewOracle(prov)
	}
	return knowledge.NewEngine(engineCfg), store, nil
}

func docsIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Chunk and index agreement documents (plain text or markdown)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, err := docsEngine()
			if err != nil {
				return err
			}
			defer store.Close()

			for _, path := range args {
				raw, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}

				name := filepath.Base(path)
				doc, err := engine.AddDocument(context.Background(), name, mimeFor(path), string(raw))
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				fmt.Printf("indexed %s (%d chunks, id %s)\n", name, doc.ChunkCount, doc.ID)
			}
			return nil
		},
	}
}

func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		return "text/markdown"
	default:
		return "text/plain"
	}
}

func docsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, err := docsEngine()
			if err != nil {
				return err
			}
			defer store.Close()

			docs, err := engine.ListDocuments(context.Background())
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Println("no documents indexed; run 'leasebot docs ingest <file>'")
				return nil
			}
			for _, d := range docs {
				fmt.Printf("%s  %-30s %6d bytes  %3d chunks  %s\n",
					d.ID, d.Name, d.Size, d.ChunkCount, d.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func docsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a document and its index entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, err := docsEngine()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := engine.DeleteDocument(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}
