package lease

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/corvid-dhcpd/corvid-dhcpd/internal/metrics"
)

var (
	bucketLeases   = []byte("leases")
	bucketIndexMAC = []byte("index_mac")
)

// Store persists leases in bbolt and keeps an in-memory MAC index for O(1)
// lookup, since the DORA cycle looks up by MAC far more often than by IP.
type Store struct {
	db    *bolt.DB
	mu    sync.RWMutex
	byIP  map[string]*Lease
	byMAC map[string]*Lease
}

// NewStore opens (creating if necessary) the bbolt database at path and
// loads its contents into memory.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("lease: opening database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketLeases, bucketIndexMAC} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lease: initializing buckets: %w", err)
	}

	s := &Store{db: db, byIP: make(map[string]*Lease), byMAC: make(map[string]*Lease)}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, fmt.Errorf("lease: loading leases: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) loadAll() error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLeases)
		return b.ForEach(func(k, v []byte) error {
			l := &Lease{}
			if err := json.Unmarshal(v, l); err != nil {
				return fmt.Errorf("unmarshalling lease %s: %w", k, err)
			}
			s.index(l)
			return nil
		})
	})
}

func (s *Store) index(l *Lease) {
	s.byIP[l.IP.String()] = l
	s.byMAC[l.MAC.String()] = l
}

func (s *Store) unindex(l *Lease) {
	delete(s.byIP, l.IP.String())
	delete(s.byMAC, l.MAC.String())
}

// Put persists l, replacing any existing record at the same IP.
func (s *Store) Put(l *Lease) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("lease: marshalling %s: %w", l.IP, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		ipKey := []byte(l.IP.String())
		if err := tx.Bucket(bucketLeases).Put(ipKey, data); err != nil {
			return fmt.Errorf("writing lease %s: %w", l.IP, err)
		}
		if err := tx.Bucket(bucketIndexMAC).Put([]byte(l.MAC.String()), ipKey); err != nil {
			return fmt.Errorf("updating MAC index for %s: %w", l.MAC, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if old, ok := s.byMAC[l.MAC.String()]; ok && !old.IP.Equal(l.IP) {
		s.unindex(old)
	}
	s.index(l)
	bound := s.countBound()
	s.mu.Unlock()

	metrics.LeasesActive.Set(float64(bound))
	return nil
}

// Delete removes the lease at ip, if any.
func (s *Store) Delete(ip net.IP) error {
	key := ip.String()

	s.mu.RLock()
	l, ok := s.byIP[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketLeases).Delete([]byte(key)); err != nil {
			return fmt.Errorf("deleting lease %s: %w", ip, err)
		}
		return tx.Bucket(bucketIndexMAC).Delete([]byte(l.MAC.String()))
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.unindex(l)
	bound := s.countBound()
	s.mu.Unlock()
	metrics.LeasesActive.Set(float64(bound))
	return nil
}

// GetByIP returns a clone of the lease bound to ip, or nil.
func (s *Store) GetByIP(ip net.IP) *Lease {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.byIP[ip.String()]
	if !ok {
		return nil
	}
	return l.Clone()
}

// GetByMAC returns a clone of the lease held by mac, or nil.
func (s *Store) GetByMAC(mac net.HardwareAddr) *Lease {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.byMAC[mac.String()]
	if !ok {
		return nil
	}
	return l.Clone()
}

// All returns a clone of every lease currently stored.
func (s *Store) All() []*Lease {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Lease, 0, len(s.byIP))
	for _, l := range s.byIP {
		out = append(out, l.Clone())
	}
	return out
}

func (s *Store) countBound() int {
	n := 0
	for _, l := range s.byIP {
		if l.State == StateBound {
			n++
		}
	}
	return n
}
