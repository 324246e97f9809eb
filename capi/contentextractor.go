package main

/*
#include <stdlib.h>

// An embedder-supplied extractor is three plain functions rather than an
// object, mirroring the TextExtractor interface's three methods across
// the ABI (§6, §9 "duck-typed extractors / plug-points").
typedef int (*fv_extractor_can_handle_fn)(const char *mime, void *user_data);
typedef int (*fv_extractor_priority_fn)(void *user_data);
typedef char *(*fv_extractor_extract_fn)(const char *path, void *user_data);

static inline int fv_call_can_handle(fv_extractor_can_handle_fn fn, const char *mime, void *user_data) {
	return fn(mime, user_data);
}
static inline int fv_call_priority(fv_extractor_priority_fn fn, void *user_data) {
	return fn(user_data);
}
static inline char *fv_call_extract(fv_extractor_extract_fn fn, const char *path, void *user_data) {
	return fn(path, user_data);
}
*/
import "C"

import (
	"context"
	"unsafe"

	"github.com/familyvault/familyvault-core/internal/contentextractor"
	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/store"
)

// cExtractor adapts three C function pointers into a TextExtractor. It
// holds onto the raw C strings it passes extract's result through: the
// embedder's extract_fn is expected to return a C-allocated string that
// this side frees once copied into Go memory, matching the ownership
// convention used everywhere else crossing the ABI.
type cExtractor struct {
	name       string
	canHandle  C.fv_extractor_can_handle_fn
	priority   C.fv_extractor_priority_fn
	extract    C.fv_extractor_extract_fn
	userData   unsafe.Pointer
}

func (e *cExtractor) Name() string { return e.name }

func (e *cExtractor) CanHandle(mime string) bool {
	cmime := C.CString(mime)
	defer C.free(unsafe.Pointer(cmime))
	return C.fv_call_can_handle(e.canHandle, cmime, e.userData) != 0
}

func (e *cExtractor) Priority() int {
	return int(C.fv_call_priority(e.priority, e.userData))
}

func (e *cExtractor) Extract(ctx context.Context, path string) (contentextractor.Extraction, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	out := C.fv_call_extract(e.extract, cpath, e.userData)
	if out == nil {
		return contentextractor.Extraction{}, contentextractorExtractFailed(e.name)
	}
	defer C.free(unsafe.Pointer(out))
	return contentextractor.Extraction{Text: C.GoString(out), Method: e.name, Confidence: 1}, nil
}

//export fv_contentextractor_open
func fv_contentextractor_open(dbHandle, busHandle C.ulonglong, maxTextKB C.int) C.ulonglong {
	db, ok := lookup[*store.DB](handle(dbHandle), "fv_contentextractor_open")
	if !ok {
		return 0
	}
	bus, ok := lookup[*events.Logger](handle(busHandle), "fv_contentextractor_open")
	if !ok {
		return 0
	}
	registry := contentextractor.NewRegistry()
	m := contentextractor.New(db, bus, registry, int(maxTextKB))
	clearLastError()
	return C.ulonglong(handles.put(extractorHandle{registry: registry, running: startService(m)}))
}

type extractorHandle struct {
	registry *contentextractor.Registry
	running  *runningService
}

//export fv_contentextractor_register
func fv_contentextractor_register(h C.ulonglong, name *C.char, canHandle C.fv_extractor_can_handle_fn, priority C.fv_extractor_priority_fn, extract C.fv_extractor_extract_fn, userData unsafe.Pointer) C.int {
	eh, ok := lookup[extractorHandle](handle(h), "fv_contentextractor_register")
	if !ok {
		return C.int(ecInvalidArgument)
	}
	eh.registry.Register(&cExtractor{
		name: fromGoString(name), canHandle: canHandle, priority: priority, extract: extract, userData: userData,
	})
	clearLastError()
	return C.int(ecOK)
}

//export fv_contentextractor_enqueue
func fv_contentextractor_enqueue(h C.ulonglong, fileID C.longlong) {
	if eh, ok := lookup[extractorHandle](handle(h), "fv_contentextractor_enqueue"); ok {
		eh.running.svc.(*contentextractor.Manager).Enqueue(int64(fileID))
	}
	clearLastError()
}

//export fv_contentextractor_close
func fv_contentextractor_close(h C.ulonglong) {
	if eh, ok := lookup[extractorHandle](handle(h), "fv_contentextractor_close"); ok {
		eh.running.stop()
		eh.running.svc.(*contentextractor.Manager).Close()
	}
	handles.delete(handle(h))
	clearLastError()
}

func contentextractorExtractFailed(name string) error {
	return &extractFailedError{name: name}
}

type extractFailedError struct{ name string }

func (e *extractFailedError) Error() string {
	return "extractor " + e.name + " returned a null result"
}
