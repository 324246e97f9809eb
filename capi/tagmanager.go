package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"context"

	"github.com/familyvault/familyvault-core/internal/store"
	"github.com/familyvault/familyvault-core/internal/tagmanager"
)

//export fv_tagmanager_open
func fv_tagmanager_open(dbHandle C.ulonglong) C.ulonglong {
	db, ok := lookup[*store.DB](handle(dbHandle), "fv_tagmanager_open")
	if !ok {
		return 0
	}
	clearLastError()
	return C.ulonglong(handles.put(tagmanager.New(db)))
}

//export fv_tagmanager_close
func fv_tagmanager_close(h C.ulonglong) {
	if m, ok := lookup[*tagmanager.Manager](handle(h), "fv_tagmanager_close"); ok {
		m.Close()
	}
	handles.delete(handle(h))
	clearLastError()
}

//export fv_tagmanager_add_tag
func fv_tagmanager_add_tag(h C.ulonglong, fileID C.longlong, name *C.char) C.int {
	m, ok := lookup[*tagmanager.Manager](handle(h), "fv_tagmanager_add_tag")
	if !ok {
		return C.int(ecInvalidArgument)
	}
	err := m.AddTag(context.Background(), int64(fileID), fromGoString(name), tagmanager.SourceUser)
	return C.int(setLastErrorFromErr("fv_tagmanager_add_tag", err))
}

//export fv_tagmanager_remove_tag
func fv_tagmanager_remove_tag(h C.ulonglong, fileID C.longlong, name *C.char) C.int {
	m, ok := lookup[*tagmanager.Manager](handle(h), "fv_tagmanager_remove_tag")
	if !ok {
		return C.int(ecInvalidArgument)
	}
	err := m.RemoveTag(context.Background(), int64(fileID), fromGoString(name))
	return C.int(setLastErrorFromErr("fv_tagmanager_remove_tag", err))
}

// fv_tagmanager_tags returns a JSON array of tag-name strings.
//
//export fv_tagmanager_tags
func fv_tagmanager_tags(h C.ulonglong, fileID C.longlong) *C.char {
	m, ok := lookup[*tagmanager.Manager](handle(h), "fv_tagmanager_tags")
	if !ok {
		return nil
	}
	tags, err := m.Tags(context.Background(), int64(fileID))
	if err != nil {
		setLastErrorFromErr("fv_tagmanager_tags", err)
		return nil
	}
	return toJSONString("fv_tagmanager_tags", tags)
}

//export fv_tagmanager_auto_tag
func fv_tagmanager_auto_tag(h C.ulonglong, fileID C.longlong) *C.char {
	m, ok := lookup[*tagmanager.Manager](handle(h), "fv_tagmanager_auto_tag")
	if !ok {
		return nil
	}
	tags, err := m.AutoTag(context.Background(), int64(fileID))
	if err != nil {
		setLastErrorFromErr("fv_tagmanager_auto_tag", err)
		return nil
	}
	return toJSONString("fv_tagmanager_auto_tag", tags)
}
