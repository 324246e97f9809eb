package main

/*
#include <stdlib.h>

// fv_event_callback is the embedder-supplied sink for scan progress,
// content progress, device events, and network events (§6, §9 "Callbacks
// as control flow"): payload is a heap JSON string the receiver must free
// via fv_free_string. user_data is whatever the embedder passed to
// fv_events_subscribe, round-tripped unchanged.
typedef void (*fv_event_callback)(unsigned long long event_type, const char *json_payload, void *user_data);

static inline void fv_invoke_event_callback(fv_event_callback cb, unsigned long long event_type, const char *json_payload, void *user_data) {
	cb(event_type, json_payload, user_data);
}
*/
import "C"

import (
	"encoding/json"
	"unsafe"

	"github.com/familyvault/familyvault-core/internal/events"
)

//export fv_events_open
func fv_events_open() C.ulonglong {
	clearLastError()
	return C.ulonglong(handles.put(events.NewLogger()))
}

//export fv_events_close
func fv_events_close(h C.ulonglong) {
	if bus, ok := lookup[*events.Logger](handle(h), "fv_events_close"); ok {
		bus.Close()
	}
	handles.delete(handle(h))
	clearLastError()
}

type wireEvent struct {
	ID   int64  `json:"id"`
	Time int64  `json:"time"`
	Data any    `json:"data"`
}

type subscription struct {
	sub  *events.Subscription
	bus  *events.Logger
	stop chan struct{}
}

// fv_events_subscribe starts forwarding every event matching mask (0 =
// all) on bus to cb until fv_events_unsubscribe is called. Delivery runs
// on a dedicated goroutine, never on the caller's thread, per §9's
// "must not assume the callback runs on a specific thread" — the
// embedder's cb must be safe to call from an arbitrary native thread.
//
//export fv_events_subscribe
func fv_events_subscribe(busHandle C.ulonglong, mask C.ulonglong, cb C.fv_event_callback, userData unsafe.Pointer) C.ulonglong {
	bus, ok := lookup[*events.Logger](handle(busHandle), "fv_events_subscribe")
	if !ok {
		return 0
	}
	sub := bus.Subscribe(events.Type(mask))
	s := &subscription{sub: sub, bus: bus, stop: make(chan struct{})}

	go func() {
		for {
			select {
			case ev, ok := <-sub.C():
				if !ok {
					return
				}
				b, err := json.Marshal(wireEvent{ID: ev.ID, Time: ev.Time.Unix(), Data: ev.Data})
				if err != nil {
					continue
				}
				cstr := C.CString(string(b))
				C.fv_invoke_event_callback(cb, C.ulonglong(ev.Type), cstr, userData)
			case <-s.stop:
				return
			}
		}
	}()

	clearLastError()
	return C.ulonglong(handles.put(s))
}

//export fv_events_unsubscribe
func fv_events_unsubscribe(h C.ulonglong) {
	if s, ok := lookup[*subscription](handle(h), "fv_events_unsubscribe"); ok {
		s.bus.Unsubscribe(s.sub)
		close(s.stop)
	}
	handles.delete(handle(h))
	clearLastError()
}
