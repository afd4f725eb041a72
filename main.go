// ABOUTME: Entry point for the daybook CLI and API server
// ABOUTME: Routes to serve, sync, connect, and status commands
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/harperreed/daybook/calsync"
	"github.com/harperreed/daybook/db"
	"github.com/harperreed/daybook/models"
	"github.com/harperreed/daybook/web"
)

const version = "0.1.0"

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/daybook/daybook.db)")

	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("daybook version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	database, err := db.OpenDatabase(getDatabasePath(*dbPath))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	tokens := calsync.NewTokenManager(database,
		os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
	client := calsync.NewClient()
	reconciler := calsync.NewReconciler(database, tokens, client)
	publisher := calsync.NewPublisher(database, tokens, client)

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "init":
		log.Println("Database initialized successfully")

	case "serve":
		serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
		port := serveFlags.Int("port", 8080, "Port for the API server")
		_ = serveFlags.Parse(commandArgs)

		server := web.NewServer(database, tokens, reconciler, publisher, client)
		if err := server.Start(*port); err != nil {
			log.Fatalf("Server failed: %v", err)
		}

	case "sync":
		userID := parseUserFlag("sync", commandArgs)
		result, err := reconciler.SyncEvents(context.Background(), userID)
		if err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		fmt.Printf("Synced %d of %d events (skipped %d cancelled, %d with invalid times)\n",
			result.Synced, result.TotalFromGoogle,
			result.SkippedCancelled, result.SkippedInvalidTime)

	case "status":
		userID := parseUserFlag("status", commandArgs)
		state, err := db.GetSyncState(database, userID)
		if err != nil {
			log.Fatalf("Failed to read sync state: %v", err)
		}
		if state == nil {
			fmt.Println("Never synced")
			return
		}
		fmt.Printf("Status: %s\n", state.Status)
		if state.LastSyncTime != nil {
			fmt.Printf("Last sync: %s\n", state.LastSyncTime.Format("2006-01-02 15:04:05"))
		}
		if state.ErrorMessage != nil {
			fmt.Printf("Error: %s\n", *state.ErrorMessage)
		}
		fmt.Printf("Last pass: %d synced, %d total, %d cancelled, %d invalid time\n",
			state.Result.Synced, state.Result.TotalFromGoogle,
			state.Result.SkippedCancelled, state.Result.SkippedInvalidTime)

	case "connect":
		// Stores credentials obtained from an external consent flow.
		connectFlags := flag.NewFlagSet("connect", flag.ExitOnError)
		user := connectFlags.String("user", "", "User ID (uuid)")
		refreshToken := connectFlags.String("refresh-token", "", "OAuth refresh token from the consent flow")
		_ = connectFlags.Parse(commandArgs)

		userID, err := uuid.Parse(*user)
		if err != nil {
			log.Fatalf("Invalid -user: %v", err)
		}
		if *refreshToken == "" {
			log.Fatal("-refresh-token is required")
		}

		account := &models.Account{
			UserID:       userID,
			Provider:     models.ProviderGoogle,
			RefreshToken: *refreshToken,
		}
		if err := db.SaveAccount(database, account); err != nil {
			log.Fatalf("Failed to save account: %v", err)
		}
		fmt.Println("Google account connected. Run 'daybook sync' to pull events.")

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func parseUserFlag(name string, args []string) uuid.UUID {
	flags := flag.NewFlagSet(name, flag.ExitOnError)
	user := flags.String("user", "", "User ID (uuid)")
	_ = flags.Parse(args)

	userID, err := uuid.Parse(*user)
	if err != nil {
		log.Fatalf("Invalid -user: %v", err)
	}
	return userID
}

func getDatabasePath(override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv("DAYBOOK_DB_PATH"); env != "" {
		return env
	}
	return filepath.Join(xdg.DataHome, "daybook", "daybook.db")
}

func printUsage() {
	fmt.Println(`daybook - personal task list and calendar

Usage:
  daybook init                                   Initialize the database and exit
  daybook serve [-port 8080]                     Start the JSON API server
  daybook sync -user <uuid>                      Run a calendar sync pass
  daybook status -user <uuid>                    Show last sync state
  daybook connect -user <uuid> -refresh-token <t>  Store Google credentials

Flags:
  -db-path <path>   Database path (or DAYBOOK_DB_PATH)
  -version          Show version

Environment:
  GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET  OAuth app credentials (.env supported)`)
}
