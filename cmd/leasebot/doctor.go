package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"leasebot/internal/config"
	"leasebot/internal/provider"
	"leasebot/internal/storage"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your leasebot installation",
		Long: `Verifies that leasebot's configuration, provider, database, and
webhook setup are in order. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("leasebot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'leasebot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, 1 failed\n", passed)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Database opens and migrates
			if err := checkDatabase(cfg.DBPath()); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", cfg.DBPath())
				passed++
			}

			// 4. Images directory writable
			if err := os.MkdirAll(cfg.Tickets.ImagesDir, 0o755); err != nil {
				printFail("Images dir", err.Error())
				failed++
			} else {
				printPass("Images dir", cfg.Tickets.ImagesDir)
				passed++
			}

			// 5. Providers configured
			providerCount := 0
			for name, p := range cfg.Providers {
				if !p.Enabled {
					continue
				}
				providerCount++
				if p.APIKey == "" && p.APIBase == "" {
					printWarn("Provider: "+name, "enabled but no API key/base configured")
					warned++
				} else {
					printPass("Provider: "+name, "configured")
					passed++
				}
			}
			if providerCount == 0 {
				printFail("Providers", "no providers enabled")
				failed++
			}

			// 6. Default provider reachable
			provFactory := provider.NewFactory(cfg, logger)
			if prov, err := provFactory.Default(); err == nil && prov != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if herr := prov.Healthy(ctx); herr != nil {
					printWarn("Provider health", fmt.Sprintf("%s: %v", prov.Name(), herr))
					warned++
				} else {
					printPass("Provider health", prov.Name())
					passed++
				}
				cancel()
			}

			// 7. WhatsApp credentials
			if cfg.Channels.WhatsApp.Enabled {
				wa := cfg.Channels.WhatsApp
				if wa.AccessToken == "" || wa.PhoneNumberID == "" || wa.VerifyToken == "" {
					printFail("WhatsApp", "enabled but accessToken/phoneNumberId/verifyToken incomplete")
					failed++
				} else if wa.AppSecret == "" {
					printWarn("WhatsApp", "no appSecret: webhook signatures will not be verified")
					warned++
				} else {
					printPass("WhatsApp", "credentials configured")
					passed++
				}
			}

			// 8. Listen address available
			if err := checkAddr(cfg.General.ListenAddr); err != nil {
				printWarn("Listen addr", fmt.Sprintf("%s may be in use: %v", cfg.General.ListenAddr, err))
				warned++
			} else {
				printPass("Listen addr", cfg.General.ListenAddr)
				passed++
			}

			// 9. Documents indexed
			if store, err := storage.NewSQLiteStore(cfg.DBPath(), logger); err == nil {
				docs, derr := store.ListDocuments(context.Background())
				store.Close()
				if derr == nil && len(docs) == 0 {
					printWarn("Documents", "no agreements indexed; run 'leasebot docs ingest'")
					warned++
				} else if derr == nil {
					printPass("Documents", fmt.Sprintf("%d indexed", len(docs)))
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running leasebot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nleasebot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! leasebot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkAddr(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
