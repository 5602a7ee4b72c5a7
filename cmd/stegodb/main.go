package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stegodb/pkg/config"
	"stegodb/pkg/database"
	"stegodb/pkg/logger"

	"github.com/google/uuid"
)

// Listens for SIGINT or SIGTERM and closes the database.
func setupCloseHandler(db *database.Database) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("closehandler invoked")
		db.Close()
		os.Exit(0)
	}()
}

// Start the database shell.
func main() {
	var promptFlag = flag.Bool("c", true, "use prompt?")
	var configFlag = flag.String("config", "", "path to an optional ini config file")
	var dataFlag = flag.String("data", "", "data directory (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", *configFlag, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *dataFlag != "" {
		cfg.DataDir = *dataFlag
	}
	logger.SetLevel(cfg.LogLevel)

	db, err := database.Open(cfg.DataDir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	setupCloseHandler(db)

	prompt := config.GetPrompt(*promptFlag)
	r := database.DatabaseRepl(db)
	r.Run(uuid.New(), prompt, os.Stdin, os.Stdout)
}
