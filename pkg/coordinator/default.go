package coordinator

import "sync"

var (
	defaultTab   *Tab
	defaultTabMu sync.RWMutex
)

// Default returns the process-wide tab, or nil before SetDefault
func Default() *Tab {
	defaultTabMu.RLock()
	defer defaultTabMu.RUnlock()
	return defaultTab
}

// SetDefault installs t as the process-wide tab and returns the previous
// one, which the caller should close.
func SetDefault(t *Tab) *Tab {
	defaultTabMu.Lock()
	defer defaultTabMu.Unlock()
	prev := defaultTab
	defaultTab = t
	return prev
}
