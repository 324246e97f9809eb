package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"encoding/json"

	"github.com/familyvault/familyvault-core/internal/searchengine"
	"github.com/familyvault/familyvault-core/internal/store"
)

//export fv_searchengine_open
func fv_searchengine_open(dbHandle C.ulonglong) C.ulonglong {
	db, ok := lookup[*store.DB](handle(dbHandle), "fv_searchengine_open")
	if !ok {
		return 0
	}
	clearLastError()
	return C.ulonglong(handles.put(searchengine.New(db)))
}

//export fv_searchengine_close
func fv_searchengine_close(h C.ulonglong) {
	if e, ok := lookup[*searchengine.Engine](handle(h), "fv_searchengine_close"); ok {
		e.Close()
	}
	handles.delete(handle(h))
	clearLastError()
}

// fv_searchengine_search takes queryJSON (a JSON-encoded searchengine.Query,
// §4.7) and returns a JSON array of Result objects.
//
//export fv_searchengine_search
func fv_searchengine_search(h C.ulonglong, queryJSON *C.char) *C.char {
	e, ok := lookup[*searchengine.Engine](handle(h), "fv_searchengine_search")
	if !ok {
		return nil
	}
	var q searchengine.Query
	if err := json.Unmarshal([]byte(fromGoString(queryJSON)), &q); err != nil {
		setLastError(ecInvalidArgument, "fv_searchengine_search", err.Error())
		return nil
	}
	results, err := e.Search(context.Background(), q)
	if err != nil {
		setLastErrorFromErr("fv_searchengine_search", err)
		return nil
	}
	return toJSONString("fv_searchengine_search", results)
}

//export fv_searchengine_suggest
func fv_searchengine_suggest(h C.ulonglong, prefix *C.char, limit C.int) *C.char {
	e, ok := lookup[*searchengine.Engine](handle(h), "fv_searchengine_suggest")
	if !ok {
		return nil
	}
	names, err := e.Suggest(context.Background(), fromGoString(prefix), int(limit))
	if err != nil {
		setLastErrorFromErr("fv_searchengine_suggest", err)
		return nil
	}
	return toJSONString("fv_searchengine_suggest", names)
}
