package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/msaad732/meme-coin/internal/config"
	"github.com/msaad732/meme-coin/internal/database"
	"github.com/msaad732/meme-coin/internal/fallback"
	"github.com/msaad732/meme-coin/internal/service"
	"github.com/msaad732/meme-coin/internal/storage"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "migrate":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: memetracker-cli migrate")
			fmt.Println()
			fmt.Println("Apply the messages table migration to PostgreSQL.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  DATABASE_URL  PostgreSQL connection string (required)")
			return
		}
		os.Exit(runMigrate())
	case "tail":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: memetracker-cli tail [--limit N]")
			fmt.Println()
			fmt.Println("Print the most recent captured messages, newest first.")
			fmt.Println("Reads the store when DATABASE_URL is set and falls back to the local log.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  DATABASE_URL        Store connection string (optional)")
			fmt.Println("  DB_CONNECT_TIMEOUT  Store connect timeout (default: 10s)")
			fmt.Println("  FALLBACK_PATH       Fallback log path (default: data/messages.jsonl)")
			return
		}
		os.Exit(runTail(config.Load(), os.Args[2:], os.Stdout, os.Stderr))
	case "archive":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: memetracker-cli archive")
			fmt.Println()
			fmt.Println("Upload a snapshot of the fallback log to MinIO / S3.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  MINIO_ENDPOINT    Object store endpoint (required)")
			fmt.Println("  MINIO_ACCESS_KEY  Access key (required)")
			fmt.Println("  MINIO_SECRET_KEY  Secret key (required)")
			fmt.Println("  MINIO_BUCKET      Bucket (default: memetracker-archive)")
			fmt.Println("  MINIO_SECURE      Use TLS when set to true")
			fmt.Println("  FALLBACK_PATH     Fallback log path (default: data/messages.jsonl)")
			return
		}
		os.Exit(runArchive(config.Load()))
	case "health":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: memetracker-cli health")
			fmt.Println()
			fmt.Println("Check if the memetracker API server is running.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  SERVER_URL  Server base URL (default: http://localhost:8080)")
			return
		}
		os.Exit(runHealth())
	case "version":
		fmt.Printf("memetracker-cli %s\n", version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: memetracker-cli <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate  Apply database migrations")
	fmt.Println("  tail     Print recent messages")
	fmt.Println("  archive  Upload the fallback log to object storage")
	fmt.Println("  health   Check if the server is running")
	fmt.Println("  version  Print version info")
	fmt.Println()
	fmt.Println("Run 'memetracker-cli <command> --help' for details on a command.")
}

func hasFlag(flag string, args []string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// flagValue returns the argument following flag, or "" when absent.
func flagValue(flag string, args []string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "error: %s environment variable is required\n", key)
		os.Exit(1)
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- migrate ---

func runMigrate() int {
	dbURL := requireEnv("DATABASE_URL")

	fmt.Println("running migrations...")
	v, err := database.Migrate(dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("migrations complete (version: %d)\n", v)
	return 0
}

// --- tail ---

func runTail(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	limit, err := service.ParseLimit(flagValue("--limit", args))
	if err != nil {
		fmt.Fprintf(stderr, "error: --limit: %v\n", err)
		return 1
	}

	var store database.MessageStore
	s, err := database.Open(cfg.DatabaseURL, cfg.ConnectTimeout)
	switch {
	case err == nil:
		store = s
		defer s.Close()
	case errors.Is(err, database.ErrNotConfigured):
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	reads := service.NewReadService(store, fallback.New(cfg.FallbackPath))
	res, err := reads.Recent(context.Background(), limit)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if res.Warning != "" {
		fmt.Fprintf(stderr, "warning: %s\n", res.Warning)
	}
	if res.Skipped > 0 {
		fmt.Fprintf(stderr, "warning: skipped %d malformed fallback lines\n", res.Skipped)
	}

	fmt.Fprintf(stdout, "source: %s, %d messages\n", res.Source, len(res.Records))
	for _, rec := range res.Records {
		fmt.Fprintf(stdout, "%s  #%s  %s: %s\n",
			rec.Time().Format("2006-01-02 15:04:05 UTC"), rec.ChannelLabel(), rec.Author, rec.Content)
	}
	return 0
}

// --- archive ---

func runArchive(cfg *config.Config) int {
	if err := cfg.Validate("MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY"); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("connecting to %s ...\n", cfg.MinIOEndpoint)
	bucket, err := storage.NewArchiveBucket(ctx, storage.MinIOConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		Secure:    cfg.MinIOSecure,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf("archiving %s ...\n", cfg.FallbackPath)
	a, err := storage.ArchiveFallback(ctx, bucket, cfg.FallbackPath, time.Now())
	if errors.Is(err, storage.ErrNothingToArchive) {
		fmt.Println("fallback log is empty, nothing to archive")
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf("uploaded %d bytes\n", a.Size)
	fmt.Printf("  key: %s\n", a.Key)
	if a.URL != "" {
		fmt.Printf("  url: %s\n", a.URL)
	}
	return 0
}

// --- health ---

func runHealth() int {
	serverURL := envOr("SERVER_URL", "http://localhost:8080")
	url := serverURL + "/health"

	fmt.Printf("checking %s ...\n", url)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status: %d\n", resp.StatusCode)
	if len(body) > 0 {
		fmt.Printf("body:   %s\n", string(body))
	}

	if resp.StatusCode == http.StatusOK {
		fmt.Println("server is healthy")
		return 0
	}
	fmt.Fprintln(os.Stderr, "server returned non-200 status")
	return 1
}
