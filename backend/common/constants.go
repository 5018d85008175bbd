package common

import (
	"flag"
	"fmt"
	"os"
	"time"
)

var Version = "v0.3.1"
var StartTime = time.Now().Unix()

const (
	// DefaultChunkSize is the fixed client-side split size. Every chunk of a
	// file except the last one is exactly this many bytes.
	DefaultChunkSize int64 = 4 * 1024 * 1024

	// DefaultTokenTTL bounds how long an issued upload/download token stays
	// valid. Expiry is the only eviction mechanism for tokens.
	DefaultTokenTTL = 10 * time.Minute
)

var (
	Port          = flag.Int("port", 3000, "the listening port")
	PrintVersion  = flag.Bool("version", false, "print version and exit")
	PrintHelpFlag = flag.Bool("help", false, "print help and exit")
	LogDir        = flag.String("log-dir", "", "specify the log directory")
)

var (
	SQLitePath      = "data/chunkvault.db"
	RedisConnString = os.Getenv("REDIS_CONN_STRING")
	JWTSecret       = os.Getenv("JWT_SECRET")

	// StorageRoot is the directory disk-backed nodes live under; each node id
	// gets its own subdirectory.
	StorageRoot = "data/nodes"
	// StorageNodes is a comma separated list of "id@region" entries. Parsed at
	// startup into the node registry.
	StorageNodes = "node-1@local"

	ChunkSize = DefaultChunkSize
	TokenTTL  = DefaultTokenTTL
)

var (
	GlobalApiRateLimitNum            = 180
	GlobalApiRateLimitDuration int64 = 3 * 60

	RateLimitKeyExpirationDuration = 20 * time.Minute
)

const ItemsPerPage = 10

func PrintHelp() {
	fmt.Println("chunkvault " + Version)
	fmt.Println("Usage: chunkvault [--port <port>] [--log-dir <log directory>] [--version] [--help]")
}
