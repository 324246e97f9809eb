package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/familyvault/familyvault-core/internal/contentextractor"
	"github.com/familyvault/familyvault-core/internal/discovery"
	"github.com/familyvault/familyvault-core/internal/filetransfer"
	"github.com/familyvault/familyvault-core/internal/indexmanager"
	"github.com/familyvault/familyvault-core/internal/indexsync"
	"github.com/familyvault/familyvault-core/internal/netmanager"
)

func runDaemon(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dir := commonFlags(fs)
	deviceName := fs.String("device-name", "", "this device's display name")
	deviceType := fs.String("device-type", "desktop", "this device's type (desktop, mobile, nas, ...)")
	fs.Parse(args)

	if *deviceName == "" {
		return fmt.Errorf("run: -device-name is required")
	}

	b, err := openBase(*dir, *deviceName, *deviceType)
	if err != nil {
		return err
	}
	defer b.Close()

	psk, ok, err := b.pairing.FamilySecret()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if !ok {
		return fmt.Errorf("run: this device has no family secret yet; use \"create\" or \"join\" first")
	}
	deviceID := b.pairing.DeviceID()

	disco, err := discovery.New(deviceID, *deviceName, *deviceType, b.cfg.ServicePort, b.cfg.DiscoveryPort, b.bus)
	if err != nil {
		return fmt.Errorf("run: discovery: %w", err)
	}

	netman := netmanager.New(deviceID, *deviceName, *deviceType, psk, nil, b.bus, disco)
	if err := netman.Start(b.cfg.ServicePort); err != nil {
		return fmt.Errorf("run: netmanager: %w", err)
	}
	defer netman.Stop()

	syncMgr := indexsync.New(b.db, b.bus, netman)
	defer syncMgr.Close()

	registry := contentextractor.NewRegistry()
	registry.Register(plainTextExtractor{})
	extractMgr := contentextractor.New(b.db, b.bus, registry, b.cfg.MaxContentExtractTextKB)
	defer extractMgr.Close()

	idxMgr := indexmanager.New(b.db, b.bus)
	idxMgr.AutoScanInterval(0)
	defer idxMgr.Close()

	cache := filetransfer.NewCache(b.cfg.CacheDir)
	hostFor := func(id string) (string, bool) {
		for _, p := range disco.Peers() {
			if p.DeviceID == id {
				return p.IPAddress, true
			}
		}
		return "", false
	}
	hub := newFileTransferHub(deviceID, psk, b.cfg.FileTransferPort, b.db, cache, b.bus, netman, hostFor)

	sup := suture.New("familyvaultd", suture.Spec{
		FailureThreshold: 5,
		FailureBackoff:   60 * time.Second,
	})
	sup.Add(disco)
	sup.Add(syncMgr)
	sup.Add(extractMgr)
	sup.Add(idxMgr)
	sup.Add(hub)

	ctx, cancel := withSignalContext()
	defer cancel()

	log.Infof("familyvaultd running as device %s", deviceID)
	return sup.Serve(ctx)
}

