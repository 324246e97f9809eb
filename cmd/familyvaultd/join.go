package main

import (
	"flag"
	"fmt"

	"github.com/familyvault/familyvault-core/internal/pairing"
)

func runJoin(args []string) error {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	dir := commonFlags(fs)
	deviceName := fs.String("device-name", "", "this device's display name")
	deviceType := fs.String("device-type", "desktop", "this device's type (desktop, mobile, nas, ...)")
	host := fs.String("host", "", "the initiator device's address, from its QR payload")
	port := fs.Int("port", 45680, "the initiator device's pairing port")
	pin := fs.String("pin", "", "the PIN displayed on the initiator device")
	fs.Parse(args)

	if *deviceName == "" || *host == "" || *pin == "" {
		return fmt.Errorf("join: -device-name, -host, and -pin are required")
	}

	b, err := openBase(*dir, *deviceName, *deviceType)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.pairing.HasFamilySecret() {
		return fmt.Errorf("join: this device already belongs to a family (device_id=%s)", b.pairing.DeviceID())
	}

	result, err := b.pairing.JoinFamily(*host, *port, *pin)
	if err != nil {
		return err
	}
	if result != pairing.ResultSuccess {
		return fmt.Errorf("join: %s", result)
	}

	fmt.Printf("Joined family. device_id=%s\n", b.pairing.DeviceID())
	fmt.Println("Run \"familyvaultd run\" to start syncing.")
	return nil
}
