package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "AQUABILL_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

// InTestMode reports whether binaries should return before opening connections.
// Test packages set AQUABILL_TEST_MODE=1 through the testing package.
func InTestMode() bool {
	testMode.once.Do(RefreshTestMode)
	return testMode.on.Load()
}

// RefreshTestMode re-reads AQUABILL_TEST_MODE.
func RefreshTestMode() {
	testMode.on.Store(os.Getenv(testModeEnv) == "1")
}
