package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"context"

	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/indexmanager"
	"github.com/familyvault/familyvault-core/internal/store"
)

//export fv_indexmanager_open
func fv_indexmanager_open(dbHandle, busHandle C.ulonglong) C.ulonglong {
	db, ok := lookup[*store.DB](handle(dbHandle), "fv_indexmanager_open")
	if !ok {
		return 0
	}
	bus, ok := lookup[*events.Logger](handle(busHandle), "fv_indexmanager_open")
	if !ok {
		return 0
	}
	clearLastError()
	return C.ulonglong(handles.put(startService(indexmanager.New(db, bus))))
}

//export fv_indexmanager_close
func fv_indexmanager_close(h C.ulonglong) {
	if r, ok := lookup[*runningService](handle(h), "fv_indexmanager_close"); ok {
		r.stop()
		if m, ok := r.svc.(*indexmanager.Manager); ok {
			m.Close()
		}
	}
	handles.delete(handle(h))
	clearLastError()
}

func indexmanagerOf(h C.ulonglong, op string) (*indexmanager.Manager, bool) {
	r, ok := lookup[*runningService](handle(h), op)
	if !ok {
		return nil, false
	}
	m, ok := r.svc.(*indexmanager.Manager)
	if !ok {
		setLastError(ecInternal, op, "handle did not wrap an IndexManager")
		return nil, false
	}
	return m, true
}

//export fv_indexmanager_add_folder
func fv_indexmanager_add_folder(h C.ulonglong, path, name *C.char, familyVisible C.int) C.longlong {
	m, ok := indexmanagerOf(h, "fv_indexmanager_add_folder")
	if !ok {
		return 0
	}
	vis := indexmanager.VisibilityPrivate
	if familyVisible != 0 {
		vis = indexmanager.VisibilityFamily
	}
	id, err := m.AddFolder(context.Background(), fromGoString(path), fromGoString(name), vis)
	if err != nil {
		setLastErrorFromErr("fv_indexmanager_add_folder", err)
		return 0
	}
	clearLastError()
	return C.longlong(id)
}

//export fv_indexmanager_remove_folder
func fv_indexmanager_remove_folder(h C.ulonglong, folderID C.longlong) C.int {
	m, ok := indexmanagerOf(h, "fv_indexmanager_remove_folder")
	if !ok {
		return C.int(ecInvalidArgument)
	}
	return C.int(setLastErrorFromErr("fv_indexmanager_remove_folder", m.RemoveFolder(context.Background(), int64(folderID))))
}

//export fv_indexmanager_delete_file
func fv_indexmanager_delete_file(h C.ulonglong, fileID C.longlong, deleteFromDisk C.int) C.int {
	m, ok := indexmanagerOf(h, "fv_indexmanager_delete_file")
	if !ok {
		return C.int(ecInvalidArgument)
	}
	return C.int(setLastErrorFromErr("fv_indexmanager_delete_file", m.DeleteFile(context.Background(), int64(fileID), deleteFromDisk != 0)))
}

// fv_indexmanager_scan_all runs one synchronous full scan of every
// enabled folder; progress callbacks flow through the shared event bus
// (ScanProgress/ScanCompleted) rather than a direct function pointer here,
// since the event bus already solves cross-thread delivery once (§9).
//
//export fv_indexmanager_scan_all
func fv_indexmanager_scan_all(h C.ulonglong) C.int {
	m, ok := indexmanagerOf(h, "fv_indexmanager_scan_all")
	if !ok {
		return C.int(ecInvalidArgument)
	}
	return C.int(setLastErrorFromErr("fv_indexmanager_scan_all", m.ScanAll(context.Background(), nil)))
}
