package main

import (
	"os"
	"path/filepath"

	"github.com/familyvault/familyvault-core/internal/config"
	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/pairing"
	"github.com/familyvault/familyvault-core/internal/securestorage"
	"github.com/familyvault/familyvault-core/internal/store"
)

// base is every resource shared across create/join/run: a Store handle, an
// encrypted secret backend, the event bus, and the resolved Config. Each
// subcommand opens one, does its work, and closes it on the way out.
type base struct {
	dir     string
	cfg     config.Config
	db      *store.DB
	secrets *securestorage.FileBackend
	bus     *events.Logger
	pairing *pairing.FamilyPairing
}

func openBase(dir, deviceName, deviceType string) (*base, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	cfgPath := filepath.Join(dir, "config.json")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(dir, "index.db")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(dir, "cache")
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	secrets, err := securestorage.NewFileBackend(filepath.Join(dir, "secrets"))
	if err != nil {
		db.Close()
		return nil, err
	}

	fp, err := pairing.New(pairing.FromSecureStorage(secrets), deviceName, deviceType, cfg.PairingPort)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &base{
		dir:     dir,
		cfg:     cfg,
		db:      db,
		secrets: secrets,
		bus:     events.NewLogger(),
		pairing: fp,
	}, nil
}

func (b *base) Close() {
	b.pairing.StopServer()
	b.bus.Close()
	b.db.Close()
}
