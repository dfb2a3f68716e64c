//go:build !(js && wasm)

package env

import "os"

var lookup = os.LookupEnv
