package pairing

import (
	"fmt"
	"net"
	"time"

	"github.com/familyvault/familyvault-core/internal/cryptoutil"
)

const clientTimeout = 15 * time.Second

// JoinFamily dials the initiator's pairing endpoint, sends the PIN and
// this device's identity, and awaits a response (§4.9, §4.10). On success
// the family secret is persisted locally.
func (fp *FamilyPairing) JoinFamily(host string, port int, pin string) (Result, error) {
	if fp.HasFamilySecret() {
		return ResultAlreadyConfigured, nil
	}

	addr := net.JoinHostPort(host, portDigits(port))
	conn, err := net.DialTimeout("tcp", addr, clientTimeout)
	if err != nil {
		return ResultNetworkError, fmt.Errorf("pairing: dial %s: %w", addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(clientTimeout))

	req := Request{PIN: pin, DeviceID: fp.deviceID, DeviceName: fp.deviceName, DeviceType: fp.deviceType}
	if err := writeRequest(conn, req); err != nil {
		return ResultNetworkError, err
	}

	resp, err := readResponse(conn)
	if err != nil {
		return ResultNetworkError, err
	}

	if resp.Result != ResultSuccess {
		return resp.Result, nil
	}

	secret, err := cryptoutil.Base64Decode(resp.FamilySecret)
	if err != nil {
		return ResultInternalError, err
	}
	if err := fp.secrets.StoreString("family_secret", cryptoutil.Base64Encode(secret)); err != nil {
		return ResultInternalError, err
	}
	return ResultSuccess, nil
}

func portDigits(port int) string {
	if port <= 0 {
		port = 45680
	}
	return fmt.Sprintf("%d", port)
}
