package serialmux

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
)

// subscriberSet tracks line subscribers. Once shut, new subscribers get an
// already-closed channel.
type subscriberSet struct {
	mu    sync.Mutex
	chans map[string]chan string
	shut  bool
}

// randomID returns 8 random bytes, hex encoded.
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *subscriberSet) add(buffer int) (string, chan string) {
	id := randomID()
	ch := make(chan string, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shut {
		close(ch)
		return id, ch
	}
	if s.chans == nil {
		s.chans = make(map[string]chan string)
	}
	s.chans[id] = ch
	return id, ch
}

func (s *subscriberSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.chans[id]; ok {
		close(ch)
		delete(s.chans, id)
	}
}

// broadcast offers line to every subscriber without blocking; a subscriber
// with a full buffer misses it. It reports false once the set is shut.
func (s *subscriberSet) broadcast(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shut {
		return false
	}
	for _, ch := range s.chans {
		select {
		case ch <- line:
		default:
		}
	}
	return true
}

// shutdown closes every channel. It reports false if already shut.
func (s *subscriberSet) shutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shut {
		return false
	}
	s.shut = true
	for id, ch := range s.chans {
		close(ch)
		delete(s.chans, id)
	}
	return true
}
