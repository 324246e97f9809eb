// Package config holds the per-device tunables for the FamilyVault core:
// listen ports, discovery intervals, cache location, scan/extraction
// limits. It mirrors the teacher's OptionsConfiguration pattern (defaulted
// struct fields loaded from persisted JSON, with in-code defaults applied
// whenever a field is absent) rather than requiring an external config
// format.
package config

import (
	"encoding/json"
	"os"
	"time"
)

// Config is the full set of tunables an embedder may override. Every field
// carries its spec-mandated default so a zero-value Config (e.g. freshly
// unmarshaled from an older, shorter JSON file) is still usable.
type Config struct {
	ServicePort      int `json:"service_port"`       // default 45678, §6
	PairingPort      int `json:"pairing_port"`       // default 45680, §6
	FileTransferPort int `json:"file_transfer_port"` // default 45681; separate from ServicePort since IndexSync and FileTransfer each own their single-reader Session per connection

	DiscoveryPort      int           `json:"discovery_port"`       // fixed UDP announce port
	AnnounceInterval    time.Duration `json:"announce_interval"`    // t_announce ≈ 5s, §4.11
	PeerLostAfter       time.Duration `json:"peer_lost_after"`      // t_lost ≈ 30s, §4.11

	PairingHandshakeTimeout time.Duration `json:"pairing_handshake_timeout"` // 15s, §4.10
	TLSHandshakeTimeout     time.Duration `json:"tls_handshake_timeout"`     // 5s, §4.12
	IdleReadTimeout         time.Duration `json:"idle_read_timeout"`         // 30s, §4.12/5

	MaxContentExtractTextKB int `json:"max_text_kb"` // truncation limit, §4.6
	ScanConcurrency         int `json:"scan_concurrency"`

	SyncPushInterval   time.Duration `json:"sync_push_interval"`
	SyncBackoffMax     time.Duration `json:"sync_backoff_max"` // bounded at 60s, §4.14

	CacheDir string `json:"cache_dir"`
	DBPath   string `json:"db_path"`
}

// Default returns the spec-mandated defaults.
func Default() Config {
	return Config{
		ServicePort:             45678,
		PairingPort:             45680,
		FileTransferPort:        45681,
		DiscoveryPort:           45679,
		AnnounceInterval:        5 * time.Second,
		PeerLostAfter:           30 * time.Second,
		PairingHandshakeTimeout: 15 * time.Second,
		TLSHandshakeTimeout:     5 * time.Second,
		IdleReadTimeout:         30 * time.Second,
		MaxContentExtractTextKB: 256,
		ScanConcurrency:         1,
		SyncPushInterval:        30 * time.Second,
		SyncBackoffMax:          60 * time.Second,
	}
}

// applyDefaults fills zero-valued fields of c from Default(), so a
// partially-populated Config (e.g. loaded from disk before a field
// existed) behaves as if that field had always carried its default.
func (c Config) applyDefaults() Config {
	d := Default()
	if c.ServicePort == 0 {
		c.ServicePort = d.ServicePort
	}
	if c.PairingPort == 0 {
		c.PairingPort = d.PairingPort
	}
	if c.FileTransferPort == 0 {
		c.FileTransferPort = d.FileTransferPort
	}
	if c.DiscoveryPort == 0 {
		c.DiscoveryPort = d.DiscoveryPort
	}
	if c.AnnounceInterval == 0 {
		c.AnnounceInterval = d.AnnounceInterval
	}
	if c.PeerLostAfter == 0 {
		c.PeerLostAfter = d.PeerLostAfter
	}
	if c.PairingHandshakeTimeout == 0 {
		c.PairingHandshakeTimeout = d.PairingHandshakeTimeout
	}
	if c.TLSHandshakeTimeout == 0 {
		c.TLSHandshakeTimeout = d.TLSHandshakeTimeout
	}
	if c.IdleReadTimeout == 0 {
		c.IdleReadTimeout = d.IdleReadTimeout
	}
	if c.MaxContentExtractTextKB == 0 {
		c.MaxContentExtractTextKB = d.MaxContentExtractTextKB
	}
	if c.ScanConcurrency == 0 {
		c.ScanConcurrency = d.ScanConcurrency
	}
	if c.SyncPushInterval == 0 {
		c.SyncPushInterval = d.SyncPushInterval
	}
	if c.SyncBackoffMax == 0 {
		c.SyncBackoffMax = d.SyncBackoffMax
	}
	return c
}

// Load reads a Config from path, applying defaults to anything absent. A
// missing file is not an error: Default() is returned as-is, matching an
// embedder's first run before any config has been persisted.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, err
	}
	return c.applyDefaults(), nil
}

// Save persists c as indented JSON.
func Save(path string, c Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
