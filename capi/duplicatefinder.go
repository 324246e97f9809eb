package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"context"

	"github.com/familyvault/familyvault-core/internal/duplicatefinder"
	"github.com/familyvault/familyvault-core/internal/store"
)

//export fv_duplicatefinder_open
func fv_duplicatefinder_open(dbHandle C.ulonglong) C.ulonglong {
	db, ok := lookup[*store.DB](handle(dbHandle), "fv_duplicatefinder_open")
	if !ok {
		return 0
	}
	clearLastError()
	return C.ulonglong(handles.put(duplicatefinder.New(db)))
}

//export fv_duplicatefinder_close
func fv_duplicatefinder_close(h C.ulonglong) {
	if f, ok := lookup[*duplicatefinder.Finder](handle(h), "fv_duplicatefinder_close"); ok {
		f.Close()
	}
	handles.delete(handle(h))
	clearLastError()
}

// fv_duplicatefinder_find_duplicates returns a JSON array of Group
// objects (§4.8, §8 scenario 5).
//
//export fv_duplicatefinder_find_duplicates
func fv_duplicatefinder_find_duplicates(h C.ulonglong) *C.char {
	f, ok := lookup[*duplicatefinder.Finder](handle(h), "fv_duplicatefinder_find_duplicates")
	if !ok {
		return nil
	}
	groups, err := f.FindDuplicates(context.Background())
	if err != nil {
		setLastErrorFromErr("fv_duplicatefinder_find_duplicates", err)
		return nil
	}
	return toJSONString("fv_duplicatefinder_find_duplicates", groups)
}

//export fv_duplicatefinder_files_without_backup
func fv_duplicatefinder_files_without_backup(h C.ulonglong) *C.char {
	f, ok := lookup[*duplicatefinder.Finder](handle(h), "fv_duplicatefinder_files_without_backup")
	if !ok {
		return nil
	}
	files, err := f.FilesWithoutBackup(context.Background())
	if err != nil {
		setLastErrorFromErr("fv_duplicatefinder_files_without_backup", err)
		return nil
	}
	return toJSONString("fv_duplicatefinder_files_without_backup", files)
}

// fv_duplicatefinder_keep_only_one deletes every local copy sharing
// checksum except keepID, routing through indexManagerHandle (an
// fv_indexmanager handle, may be 0 to delete rows directly without
// touching folder counters or disk bytes).
//
//export fv_duplicatefinder_keep_only_one
func fv_duplicatefinder_keep_only_one(h C.ulonglong, checksum *C.char, keepID C.longlong, indexManagerHandle C.ulonglong) C.int {
	f, ok := lookup[*duplicatefinder.Finder](handle(h), "fv_duplicatefinder_keep_only_one")
	if !ok {
		return C.int(ecInvalidArgument)
	}
	var deleter duplicatefinder.Deleter
	if indexManagerHandle != 0 {
		m, ok := indexmanagerOf(indexManagerHandle, "fv_duplicatefinder_keep_only_one")
		if !ok {
			return C.int(ecInvalidArgument)
		}
		deleter = m
	}
	err := f.KeepOnlyOne(context.Background(), fromGoString(checksum), int64(keepID), deleter)
	return C.int(setLastErrorFromErr("fv_duplicatefinder_keep_only_one", err))
}
