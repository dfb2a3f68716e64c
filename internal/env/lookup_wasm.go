//go:build js && wasm

package env

import "github.com/syumai/workers/cloudflare"

// Worker variables come from the wrangler.toml bindings, not the process.
func lookup(key string) (string, bool) {
	v := cloudflare.Getenv(key)
	return v, v != ""
}
