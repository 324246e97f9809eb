package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"github.com/familyvault/familyvault-core/internal/discovery"
	"github.com/familyvault/familyvault-core/internal/events"
)

//export fv_discovery_open
func fv_discovery_open(deviceID, deviceName, deviceType *C.char, servicePort, discoveryPort C.int, busHandle C.ulonglong) C.ulonglong {
	bus, ok := lookup[*events.Logger](handle(busHandle), "fv_discovery_open")
	if !ok {
		return 0
	}
	d, err := discovery.New(fromGoString(deviceID), fromGoString(deviceName), fromGoString(deviceType), int(servicePort), int(discoveryPort), bus)
	if err != nil {
		setLastErrorFromErr("fv_discovery_open", err)
		return 0
	}
	clearLastError()
	return C.ulonglong(handles.put(startService(d)))
}

//export fv_discovery_close
func fv_discovery_close(h C.ulonglong) {
	if r, ok := lookup[*runningService](handle(h), "fv_discovery_close"); ok {
		r.stop()
	}
	handles.delete(handle(h))
	clearLastError()
}

// fv_discovery_peers returns the current peer table as a JSON array of
// objects with stable field names (§3, §6).
//
//export fv_discovery_peers
func fv_discovery_peers(h C.ulonglong) *C.char {
	r, ok := lookup[*runningService](handle(h), "fv_discovery_peers")
	if !ok {
		return nil
	}
	d, ok := r.svc.(*discovery.Discovery)
	if !ok {
		setLastError(ecInternal, "fv_discovery_peers", "handle did not wrap a Discovery")
		return nil
	}
	return toJSONString("fv_discovery_peers", d.Peers())
}
