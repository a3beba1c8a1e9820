//go:build llama

package backend

// cgo link directives for the in-process llama variant.
// - rpath of $ORIGIN so the runtime loader finds libllama.so next to the
//   built binary (./bin).
// - -L${SRCDIR}/../../bin so the linker finds libllama.so at link time.

/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
