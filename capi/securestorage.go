package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"context"

	"github.com/familyvault/familyvault-core/internal/securestorage"
)

//export fv_securestorage_open_file_backend
func fv_securestorage_open_file_backend(dir *C.char) C.ulonglong {
	b, err := securestorage.NewFileBackend(fromGoString(dir))
	if err != nil {
		setLastErrorFromErr("fv_securestorage_open_file_backend", err)
		return 0
	}
	clearLastError()
	return C.ulonglong(handles.put(securestorage.Store(b)))
}

//export fv_securestorage_close
func fv_securestorage_close(h C.ulonglong) {
	handles.delete(handle(h))
	clearLastError()
}

//export fv_securestorage_store
func fv_securestorage_store(h C.ulonglong, key, value *C.char) C.int {
	s, ok := lookup[securestorage.Store](handle(h), "fv_securestorage_store")
	if !ok {
		return C.int(ecInvalidArgument)
	}
	err := securestorage.StoreString(context.Background(), s, fromGoString(key), fromGoString(value))
	return C.int(setLastErrorFromErr("fv_securestorage_store", err))
}

// fv_securestorage_retrieve returns a heap string the caller frees with
// fv_free_string, or NULL if the key is absent or the lookup failed (check
// fv_last_error_code to tell them apart: "absent" clears it to OK, a real
// failure sets it).
//
//export fv_securestorage_retrieve
func fv_securestorage_retrieve(h C.ulonglong, key *C.char) *C.char {
	s, ok := lookup[securestorage.Store](handle(h), "fv_securestorage_retrieve")
	if !ok {
		return nil
	}
	v, found, err := securestorage.RetrieveString(context.Background(), s, fromGoString(key))
	if err != nil {
		setLastErrorFromErr("fv_securestorage_retrieve", err)
		return nil
	}
	clearLastError()
	if !found {
		return nil
	}
	return C.CString(v)
}

//export fv_securestorage_remove
func fv_securestorage_remove(h C.ulonglong, key *C.char) C.int {
	s, ok := lookup[securestorage.Store](handle(h), "fv_securestorage_remove")
	if !ok {
		return C.int(ecInvalidArgument)
	}
	err := s.Remove(context.Background(), fromGoString(key))
	return C.int(setLastErrorFromErr("fv_securestorage_remove", err))
}
