package main

/*
#include <stdlib.h>
*/
import "C"

import "encoding/json"

// toJSONString marshals v and hands the caller a heap string they must
// free via fv_free_string. A marshal failure (never expected for the
// plain structs this package returns) is reported as Internal rather than
// panicking across the ABI.
func toJSONString(op string, v any) *C.char {
	b, err := json.Marshal(v)
	if err != nil {
		setLastError(ecInternal, op, err.Error())
		return nil
	}
	clearLastError()
	return C.CString(string(b))
}

func fromGoString(s *C.char) string {
	return C.GoString(s)
}
