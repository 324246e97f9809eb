package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"unsafe"

	"github.com/familyvault/familyvault-core/internal/discovery"
	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/netmanager"
)

// fv_netmanager_open constructs a Manager; discoveryHandle may be 0, in
// which case ConnectToDevice (which resolves addresses via Discovery) is
// unavailable and callers must use fv_netmanager_connect_address instead.
//
//export fv_netmanager_open
func fv_netmanager_open(deviceID, deviceName, deviceType *C.char, psk unsafe.Pointer, pskLen C.int, busHandle, discoveryHandle C.ulonglong) C.ulonglong {
	bus, ok := lookup[*events.Logger](handle(busHandle), "fv_netmanager_open")
	if !ok {
		return 0
	}
	var disco *discovery.Discovery
	if discoveryHandle != 0 {
		if r, ok := lookup[*runningService](handle(discoveryHandle), "fv_netmanager_open"); ok {
			disco, _ = r.svc.(*discovery.Discovery)
		}
	}
	pskBytes := C.GoBytes(psk, pskLen)
	m := netmanager.New(fromGoString(deviceID), fromGoString(deviceName), fromGoString(deviceType), pskBytes, nil, bus, disco)
	clearLastError()
	return C.ulonglong(handles.put(m))
}

//export fv_netmanager_start
func fv_netmanager_start(h C.ulonglong, port C.int) C.int {
	m, ok := lookup[*netmanager.Manager](handle(h), "fv_netmanager_start")
	if !ok {
		return C.int(ecInvalidArgument)
	}
	return C.int(setLastErrorFromErr("fv_netmanager_start", m.Start(int(port))))
}

//export fv_netmanager_stop
func fv_netmanager_stop(h C.ulonglong) {
	if m, ok := lookup[*netmanager.Manager](handle(h), "fv_netmanager_stop"); ok {
		m.Stop()
	}
	clearLastError()
}

//export fv_netmanager_close
func fv_netmanager_close(h C.ulonglong) {
	if m, ok := lookup[*netmanager.Manager](handle(h), "fv_netmanager_close"); ok {
		m.Stop()
	}
	handles.delete(handle(h))
	clearLastError()
}

//export fv_netmanager_connect_device
func fv_netmanager_connect_device(h C.ulonglong, deviceID *C.char) {
	if m, ok := lookup[*netmanager.Manager](handle(h), "fv_netmanager_connect_device"); ok {
		m.ConnectToDevice(context.Background(), fromGoString(deviceID))
	}
	clearLastError()
}

//export fv_netmanager_connect_address
func fv_netmanager_connect_address(h C.ulonglong, deviceID, addr *C.char) {
	if m, ok := lookup[*netmanager.Manager](handle(h), "fv_netmanager_connect_address"); ok {
		m.ConnectToAddress(context.Background(), fromGoString(deviceID), fromGoString(addr))
	}
	clearLastError()
}

//export fv_netmanager_disconnect_device
func fv_netmanager_disconnect_device(h C.ulonglong, deviceID *C.char) {
	if m, ok := lookup[*netmanager.Manager](handle(h), "fv_netmanager_disconnect_device"); ok {
		m.DisconnectDevice(fromGoString(deviceID))
	}
	clearLastError()
}

//export fv_netmanager_is_connected
func fv_netmanager_is_connected(h C.ulonglong, deviceID *C.char) C.int {
	m, ok := lookup[*netmanager.Manager](handle(h), "fv_netmanager_is_connected")
	if !ok {
		return 0
	}
	clearLastError()
	if m.IsConnectedTo(fromGoString(deviceID)) {
		return 1
	}
	return 0
}

// fv_netmanager_connected_devices returns a JSON array of device_id
// strings.
//
//export fv_netmanager_connected_devices
func fv_netmanager_connected_devices(h C.ulonglong) *C.char {
	m, ok := lookup[*netmanager.Manager](handle(h), "fv_netmanager_connected_devices")
	if !ok {
		return nil
	}
	return toJSONString("fv_netmanager_connected_devices", m.ConnectedDevices())
}
