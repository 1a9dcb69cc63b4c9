package services

import (
	"fmt"
	"sync"
)

// KeyedMutex hands out one mutex per key, used to serialize all
// state-machine transitions of a match and all progression attempts of a
// tournament. Mutexes are created lazily and kept for the process lifetime;
// the key space (live matches and tournaments) is small enough that no
// eviction is needed.
type KeyedMutex struct {
	locks sync.Map // key -> *sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *KeyedMutex) Lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func matchKey(matchID int) string {
	return fmt.Sprintf("match:%d", matchID)
}

func tournamentKey(tournamentID int) string {
	return fmt.Sprintf("tournament:%d", tournamentID)
}
