package keyinfo

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/pkg/common/keyinfo"
)

type InMemoryInfoStore struct {
	lock    sync.RWMutex
	records map[string]*keyinfo.Info
}

func NewInMemoryInfoStore() *InMemoryInfoStore {
	return &InMemoryInfoStore{
		records: make(map[string]*keyinfo.Info),
	}
}

func (s *InMemoryInfoStore) Import(info *keyinfo.Info) (*keyinfo.Info, error) {
	if info == nil || info.Name == "" {
		return nil, errors.New("keyinfo: record must carry a name")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	displaced := s.records[info.Name].Clone()
	s.records[info.Name] = info.Clone()
	return displaced, nil
}

func (s *InMemoryInfoStore) Get(name string) (*keyinfo.Info, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	info, ok := s.records[name]
	if !ok {
		return nil, keyinfo.ErrNotFound
	}
	return info.Clone(), nil
}

func (s *InMemoryInfoStore) Exists(name string) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	_, ok := s.records[name]
	return ok, nil
}

func (s *InMemoryInfoStore) List() ([]*keyinfo.Info, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	out := make([]*keyinfo.Info, 0, len(s.records))
	for _, info := range s.records {
		out = append(out, info.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryInfoStore) Delete(name string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.records, name)
	return nil
}
