package main

/*
#include <pthread.h>

static unsigned long long fv_thread_id(void) {
	return (unsigned long long)(uintptr_t)pthread_self();
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/familyvault/familyvault-core/internal/fverrors"
)

// errorCode mirrors §6/§7's C enum exactly; values are part of the ABI and
// must never be renumbered once shipped.
type errorCode C.int

const (
	ecOK              errorCode = 0
	ecInvalidArgument errorCode = 1
	ecDatabase        errorCode = 2
	ecIo              errorCode = 3
	ecNotFound        errorCode = 4
	ecAlreadyExists   errorCode = 5
	ecAuthFailed      errorCode = 6
	ecNetwork         errorCode = 7
	ecBusy            errorCode = 8
	ecInternal        errorCode = 9
)

func codeFor(kind fverrors.Kind) errorCode {
	switch kind {
	case fverrors.OK:
		return ecOK
	case fverrors.InvalidArgument:
		return ecInvalidArgument
	case fverrors.Database:
		return ecDatabase
	case fverrors.Io:
		return ecIo
	case fverrors.NotFound:
		return ecNotFound
	case fverrors.AlreadyExists:
		return ecAlreadyExists
	case fverrors.AuthFailed:
		return ecAuthFailed
	case fverrors.Network:
		return ecNetwork
	case fverrors.Busy:
		return ecBusy
	default:
		return ecInternal
	}
}

type lastError struct {
	code errorCode
	op   string
	msg  string
}

// lastErrors holds one slot per calling OS thread, keyed by pthread_self().
// This is the "thread-local last-error slot" the resource model names as
// the one permitted piece of global mutable state (§5, §9): Go has no
// native thread-local storage, so the OS thread id doubles as the key.
var (
	lastErrorsMut sync.Mutex
	lastErrors    = make(map[uint64]lastError)
)

func threadID() uint64 {
	return uint64(C.fv_thread_id())
}

func setLastError(code errorCode, op, msg string) {
	lastErrorsMut.Lock()
	defer lastErrorsMut.Unlock()
	if code == ecOK {
		delete(lastErrors, threadID())
		return
	}
	lastErrors[threadID()] = lastError{code: code, op: op, msg: msg}
}

func setLastErrorFromErr(op string, err error) errorCode {
	if err == nil {
		setLastError(ecOK, op, "")
		return ecOK
	}
	code := codeFor(fverrors.KindOf(err))
	setLastError(code, op, err.Error())
	return code
}

func clearLastError() {
	lastErrorsMut.Lock()
	defer lastErrorsMut.Unlock()
	delete(lastErrors, threadID())
}

//export fv_last_error_code
func fv_last_error_code() C.int {
	lastErrorsMut.Lock()
	defer lastErrorsMut.Unlock()
	e, ok := lastErrors[threadID()]
	if !ok {
		return C.int(ecOK)
	}
	return C.int(e.code)
}

//export fv_last_error_message
func fv_last_error_message() *C.char {
	lastErrorsMut.Lock()
	e, ok := lastErrors[threadID()]
	lastErrorsMut.Unlock()
	if !ok {
		return nil
	}
	return C.CString(e.op + ": " + e.msg)
}

//export fv_free_string
func fv_free_string(s *C.char) {
	C.free(unsafe.Pointer(s))
}
