// Command capi is the C ABI boundary (§6): the only surface a mobile or
// desktop presentation layer links against. It wraps every internal
// manager behind an opaque handle, translates Go errors onto the fixed
// fv_error_code enum plus a thread-local last-error message, and returns
// collections as heap-allocated JSON strings the caller frees with
// fv_free_string.
//
// Build as a C archive or shared library, e.g.:
//
//	go build -buildmode=c-archive -o libfamilyvault.a ./capi
//	go build -buildmode=c-shared  -o libfamilyvault.so ./capi
//
// cgo requires exported C functions to live in package main, which is why
// this whole directory — unlike the rest of the module — is package main
// rather than living under internal/.
package main

/*
#include <stdlib.h>
*/
import "C"

func main() {}
