package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/karnwit/tabtally/internal/api"
	"github.com/karnwit/tabtally/internal/config"
	"github.com/karnwit/tabtally/internal/db"
)

func main() {
	// Parse command-line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Initialize configuration
	config.Initialize()
	log.Printf("Using config file: %s", *configFile)

	// Initialize database
	db.Initialize()
	db.Migrate()

	// Start the API server
	server := api.New(":" + viper.GetString("Server.Port"))
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalChan
		log.Println("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	log.Println("Tab settlement service is now running. Press CTRL+C to exit.")
	<-ctx.Done()
	log.Println("Tab settlement service shutting down...")
}
