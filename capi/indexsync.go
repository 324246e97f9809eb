package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/indexsync"
	"github.com/familyvault/familyvault-core/internal/netmanager"
	"github.com/familyvault/familyvault-core/internal/store"
)

//export fv_indexsync_open
func fv_indexsync_open(dbHandle, busHandle, netmanagerHandle C.ulonglong) C.ulonglong {
	db, ok := lookup[*store.DB](handle(dbHandle), "fv_indexsync_open")
	if !ok {
		return 0
	}
	bus, ok := lookup[*events.Logger](handle(busHandle), "fv_indexsync_open")
	if !ok {
		return 0
	}
	netman, ok := lookup[*netmanager.Manager](handle(netmanagerHandle), "fv_indexsync_open")
	if !ok {
		return 0
	}
	m := indexsync.New(db, bus, netman)
	clearLastError()
	return C.ulonglong(handles.put(startService(m)))
}

//export fv_indexsync_close
func fv_indexsync_close(h C.ulonglong) {
	if r, ok := lookup[*runningService](handle(h), "fv_indexsync_close"); ok {
		r.stop()
		if m, ok := r.svc.(*indexsync.Manager); ok {
			m.Close()
		}
	}
	handles.delete(handle(h))
	clearLastError()
}

//export fv_indexsync_is_syncing
func fv_indexsync_is_syncing(h C.ulonglong) C.int {
	r, ok := lookup[*runningService](handle(h), "fv_indexsync_is_syncing")
	if !ok {
		return 0
	}
	m, ok := r.svc.(*indexsync.Manager)
	if !ok {
		return 0
	}
	clearLastError()
	if m.IsSyncing() {
		return 1
	}
	return 0
}
