// cmd/lasersell/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lasersell/lasersell/internal/bot"
	"github.com/lasersell/lasersell/internal/export"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the config file")
	headless := flag.Bool("headless", false, "run without the terminal dashboard")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print the version and exit")
	exportFormat := flag.String("export", "", "export journal sells as csv or json and exit")
	exportDir := flag.String("export-dir", "exports", "directory for exported files")
	exportReason := flag.String("export-reason", "", "only export sells with this reason")
	exportMint := flag.String("export-mint", "", "only export sells of this mint")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *exportFormat != "" {
		format, err := export.ParseFormat(*exportFormat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lasersell: %v\n", err)
			os.Exit(2)
		}
		path, err := bot.ExportJournal(ctx, *configPath, export.Options{
			Format:    format,
			OutputDir: *exportDir,
			Reason:    *exportReason,
			Mint:      *exportMint,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "lasersell: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(path)
		return
	}

	runner := bot.NewRunner(bot.Options{
		ConfigPath: *configPath,
		Headless:   *headless,
		Debug:      *debug,
		Version:    version,
	})
	if err := runner.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lasersell: %v\n", err)
		os.Exit(1)
	}
}
