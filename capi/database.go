package main

/*
#include <stdlib.h>
*/
import "C"

import "github.com/familyvault/familyvault-core/internal/store"

//export fv_database_open
func fv_database_open(path *C.char) C.ulonglong {
	db, err := store.Open(fromGoString(path))
	if err != nil {
		setLastErrorFromErr("fv_database_open", err)
		return 0
	}
	clearLastError()
	return C.ulonglong(handles.put(db))
}

// fv_database_close releases the caller's own reference and, if no
// manager handle still holds one, closes the database. Returns Busy
// (without closing) when managers are still live, per §6/§8.
//
//export fv_database_close
func fv_database_close(h C.ulonglong) C.int {
	db, ok := lookup[*store.DB](handle(h), "fv_database_close")
	if !ok {
		return C.int(ecInvalidArgument)
	}
	if err := db.Close(); err != nil {
		return C.int(setLastErrorFromErr("fv_database_close", err))
	}
	handles.delete(handle(h))
	clearLastError()
	return C.int(ecOK)
}
