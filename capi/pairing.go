package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"github.com/familyvault/familyvault-core/internal/pairing"
	"github.com/familyvault/familyvault-core/internal/securestorage"
)

//export fv_pairing_open
func fv_pairing_open(secretsHandle C.ulonglong, deviceName, deviceType *C.char, pairingPort C.int) C.ulonglong {
	s, ok := lookup[securestorage.Store](handle(secretsHandle), "fv_pairing_open")
	if !ok {
		return 0
	}
	fp, err := pairing.New(pairing.FromSecureStorage(s), fromGoString(deviceName), fromGoString(deviceType), int(pairingPort))
	if err != nil {
		setLastErrorFromErr("fv_pairing_open", err)
		return 0
	}
	clearLastError()
	return C.ulonglong(handles.put(fp))
}

//export fv_pairing_close
func fv_pairing_close(h C.ulonglong) {
	if fp, ok := lookup[*pairing.FamilyPairing](handle(h), "fv_pairing_close"); ok {
		fp.StopServer()
	}
	handles.delete(handle(h))
	clearLastError()
}

//export fv_pairing_device_id
func fv_pairing_device_id(h C.ulonglong) *C.char {
	fp, ok := lookup[*pairing.FamilyPairing](handle(h), "fv_pairing_device_id")
	if !ok {
		return nil
	}
	clearLastError()
	return C.CString(fp.DeviceID())
}

//export fv_pairing_has_family_secret
func fv_pairing_has_family_secret(h C.ulonglong) C.int {
	fp, ok := lookup[*pairing.FamilyPairing](handle(h), "fv_pairing_has_family_secret")
	if !ok {
		return 0
	}
	clearLastError()
	if fp.HasFamilySecret() {
		return 1
	}
	return 0
}

type createFamilyResult struct {
	PIN       string `json:"pin"`
	QRPayload string `json:"qr_payload"`
	ExpiresAt int64  `json:"expires_at"`
}

// fv_pairing_create_family returns a JSON object ({pin, qr_payload,
// expires_at}) the caller frees with fv_free_string, or NULL on failure.
//
//export fv_pairing_create_family
func fv_pairing_create_family(h C.ulonglong, localIP *C.char) *C.char {
	fp, ok := lookup[*pairing.FamilyPairing](handle(h), "fv_pairing_create_family")
	if !ok {
		return nil
	}
	res, err := fp.CreateFamily(fromGoString(localIP))
	if err != nil {
		setLastErrorFromErr("fv_pairing_create_family", err)
		return nil
	}
	return toJSONString("fv_pairing_create_family", createFamilyResult{
		PIN: res.PIN, QRPayload: res.QRPayload, ExpiresAt: res.ExpiresAt.Unix(),
	})
}

// fv_pairing_join_family returns a Result string (§4.9's
// success/invalid_pin/expired/rate_limited/... taxonomy); the embedder UI
// branches on its exact value rather than on the generic error code, per
// §7's "distinguishes InvalidPin, Expired, RateLimited" requirement.
//
//export fv_pairing_join_family
func fv_pairing_join_family(h C.ulonglong, host *C.char, port C.int, pin *C.char) *C.char {
	fp, ok := lookup[*pairing.FamilyPairing](handle(h), "fv_pairing_join_family")
	if !ok {
		return nil
	}
	result, err := fp.JoinFamily(fromGoString(host), int(port), fromGoString(pin))
	if err != nil {
		setLastError(ecNetwork, "fv_pairing_join_family", err.Error())
		return nil
	}
	clearLastError()
	return C.CString(string(result))
}
