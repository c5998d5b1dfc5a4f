// Package guard forces test mode for binaries exercised from tests.
// Import it for side effects before calling a main function.
package guard

import (
	"os"
	"sync"
)

// Env is the flag read by app.InTestMode.
const Env = "LOSTFOUND_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(Env) == "" {
			_ = os.Setenv(Env, "1")
		}
	})
}
