// Command familyvaultd is a reference embedder wiring every FamilyVault
// manager together into one supervised process: it owns the Store, starts
// FamilyPairing's enrollment flow, and — once a family secret exists —
// starts NetworkManager and supervises Discovery, IndexSync, the
// ContentExtractor worker, IndexManager's auto-scan loop, and the
// FileTransfer hub under one suture.Supervisor, the same "single root, Add() every long-running
// piece" composition the teacher (cmd/syncthing/main.go) uses for lib/*.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/familyvault/familyvault-core/internal/logger"
)

var log = logger.New("familyvaultd")

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "join":
		err = runJoin(os.Args[2:])
	case "run":
		err = runDaemon(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "familyvaultd:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: familyvaultd <command> [flags]

commands:
  create   start a new family, printing the PIN and QR payload to join it
  join     join an existing family from another device's PIN
  run      run the full daemon (discovery, sync, transfer, extraction)`)
}

func defaultBaseDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".familyvault")
	}
	return ".familyvault"
}

func commonFlags(fs *flag.FlagSet) *string {
	return fs.String("base-dir", defaultBaseDir(), "directory holding this device's database, secrets, and cache")
}

func withSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
