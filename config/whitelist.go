// ytmp3/config/whitelist.go
package config

import (
	"os"
	"sort"
	"sync"

	"github.com/spf13/viper"
)

// Whitelist is the set of requester identities allowed to start conversions.
// The owner is always allowed. Additions are persisted to the backing file so
// they survive restarts.
type Whitelist struct {
	mu      sync.Mutex
	vp      *viper.Viper
	path    string
	ownerID string
	allowed map[string]struct{}
}

func OpenWhitelist(path, ownerID string) (*Whitelist, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.SetDefault("allowed", []string{})

	if err := vp.ReadInConfig(); err != nil {
		// A missing whitelist file just means nobody has been allowed yet.
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	w := &Whitelist{
		vp:      vp,
		path:    path,
		ownerID: ownerID,
		allowed: make(map[string]struct{}),
	}
	for _, id := range vp.GetStringSlice("allowed") {
		w.allowed[id] = struct{}{}
	}
	return w, nil
}

func (w *Whitelist) Contains(id string) bool {
	if id == "" {
		return false
	}
	if id == w.ownerID {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.allowed[id]
	return ok
}

func (w *Whitelist) IsOwner(id string) bool {
	return id != "" && id == w.ownerID
}

// Add allows a requester and writes the updated list back to disk.
func (w *Whitelist) Add(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.allowed[id]; ok {
		return nil
	}
	w.allowed[id] = struct{}{}

	ids := make([]string, 0, len(w.allowed))
	for allowed := range w.allowed {
		ids = append(ids, allowed)
	}
	sort.Strings(ids)

	w.vp.Set("allowed", ids)
	return w.vp.WriteConfigAs(w.path)
}
