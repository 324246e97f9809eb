package main

import (
	"flag"
	"fmt"
	"net"
)

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	dir := commonFlags(fs)
	deviceName := fs.String("device-name", "", "this device's display name")
	deviceType := fs.String("device-type", "desktop", "this device's type (desktop, mobile, nas, ...)")
	fs.Parse(args)

	if *deviceName == "" {
		return fmt.Errorf("create: -device-name is required")
	}

	b, err := openBase(*dir, *deviceName, *deviceType)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.pairing.HasFamilySecret() {
		return fmt.Errorf("create: this device already belongs to a family (device_id=%s); use \"run\" instead", b.pairing.DeviceID())
	}

	ip, err := localIPv4()
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	res, err := b.pairing.CreateFamily(ip)
	if err != nil {
		return err
	}

	fmt.Printf("Family created. device_id=%s\n", b.pairing.DeviceID())
	fmt.Printf("PIN:    %s (expires %s)\n", res.PIN, res.ExpiresAt.Format("15:04:05"))
	fmt.Printf("QR:     %s\n", res.QRPayload)
	fmt.Println("On another device, run: familyvaultd join -host", ip, "-port", fmt.Sprint(b.cfg.PairingPort), "-pin", res.PIN)
	return nil
}

// localIPv4 returns the first non-loopback IPv4 address of any active
// interface, a reasonable default for the QR payload's embedded host on a
// trusted LAN; the caller can always override with an explicit address.
func localIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", fmt.Errorf("no non-loopback IPv4 address found")
}
