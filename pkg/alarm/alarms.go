package alarm

import (
	"sort"
	"sync"
)

// ActiveAlarms tracks failure conditions by name so a condition that persists across loops is
// only reported when it starts and when it ends.
type ActiveAlarms struct {
	activeAlarms map[string]string
	sync.RWMutex
}

func New() *ActiveAlarms {
	return &ActiveAlarms{activeAlarms: make(map[string]string)}
}

// Raise returns true if name was not already active. The message is always updated.
func (a *ActiveAlarms) Raise(name, message string) bool {
	a.Lock()
	defer a.Unlock()
	_, exists := a.activeAlarms[name]
	a.activeAlarms[name] = message
	return !exists
}

// Clear returns true if name was active.
func (a *ActiveAlarms) Clear(name string) bool {
	a.Lock()
	defer a.Unlock()
	if _, exists := a.activeAlarms[name]; !exists {
		return false
	}
	delete(a.activeAlarms, name)
	return true
}

func (a *ActiveAlarms) Active() []string {
	a.RLock()
	defer a.RUnlock()
	names := make([]string, 0, len(a.activeAlarms))
	for name := range a.activeAlarms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
