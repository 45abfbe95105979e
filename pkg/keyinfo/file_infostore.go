package keyinfo

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/keyspec"
	"github.com/kms-shield/csp-lib/pkg/common/keyinfo"
)

const indexVersion = 1

// indexRecord is the on-disk shape of one metadata record. CreatedAt is
// kept as unix nanoseconds so reloading preserves the instant exactly.
type indexRecord struct {
	Name         string `cbor:"name"`
	Scope        uint8  `cbor:"scope"`
	Algorithm    string `cbor:"algorithm"`
	Usage        uint8  `cbor:"usage"`
	ExportPolicy uint8  `cbor:"export_policy"`
	SKI          string `cbor:"ski"`
	UniqueName   string `cbor:"unique_name"`
	CreatedAt    int64  `cbor:"created_at"`
}

type indexFile struct {
	Version int           `cbor:"version"`
	Records []indexRecord `cbor:"records"`
}

func toRecord(info *keyinfo.Info) indexRecord {
	return indexRecord{
		Name:         info.Name,
		Scope:        uint8(info.Scope),
		Algorithm:    string(info.Algorithm),
		Usage:        uint8(info.Usage),
		ExportPolicy: uint8(info.ExportPolicy),
		SKI:          info.SKI,
		UniqueName:   info.UniqueName,
		CreatedAt:    info.CreatedAt.UnixNano(),
	}
}

func fromRecord(r indexRecord) *keyinfo.Info {
	return &keyinfo.Info{
		Name:         r.Name,
		Scope:        keyspec.Scope(r.Scope),
		Algorithm:    keyspec.Algorithm(r.Algorithm),
		Usage:        keyspec.Usage(r.Usage),
		ExportPolicy: keyspec.ExportPolicy(r.ExportPolicy),
		SKI:          r.SKI,
		UniqueName:   r.UniqueName,
		CreatedAt:    time.Unix(0, r.CreatedAt).UTC(),
	}
}

// FileInfoStore keeps the metadata records of one scope in a single CBOR
// index file, rewritten atomically on every mutation. Reads load the index
// fresh from disk, so separate instances over the same path observe each
// other's writes.
type FileInfoStore struct {
	lock sync.RWMutex
	path string
}

func NewFileInfoStore(path string) *FileInfoStore {
	return &FileInfoStore{path: path}
}

func (s *FileInfoStore) load() (map[string]indexRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]indexRecord{}, nil
	}
	if err != nil {
		return nil, errors.WithMessage(err, "keyinfo: read index")
	}

	var idx indexFile
	if err := cbor.Unmarshal(data, &idx); err != nil {
		return nil, errors.WithMessage(err, "keyinfo: decode index")
	}
	if idx.Version != indexVersion {
		return nil, errors.Errorf("keyinfo: unsupported index version %d", idx.Version)
	}

	records := make(map[string]indexRecord, len(idx.Records))
	for _, r := range idx.Records {
		records[r.Name] = r
	}
	return records, nil
}

func (s *FileInfoStore) save(records map[string]indexRecord) error {
	idx := indexFile{Version: indexVersion, Records: make([]indexRecord, 0, len(records))}
	for _, r := range records {
		idx.Records = append(idx.Records, r)
	}
	sort.Slice(idx.Records, func(i, j int) bool { return idx.Records[i].Name < idx.Records[j].Name })

	data, err := cbor.Marshal(&idx)
	if err != nil {
		return errors.WithMessage(err, "keyinfo: encode index")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.WithMessage(err, "keyinfo: create index directory")
	}
	tmp := s.path + "." + uuid.New().String()[:8] + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.WithMessage(err, "keyinfo: create index file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.WithMessage(err, "keyinfo: write index file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.WithMessage(err, "keyinfo: close index file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return errors.WithMessage(err, "keyinfo: commit index file")
	}
	return nil
}

func (s *FileInfoStore) Import(info *keyinfo.Info) (*keyinfo.Info, error) {
	if info == nil || info.Name == "" {
		return nil, errors.New("keyinfo: record must carry a name")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	var displaced *keyinfo.Info
	if old, ok := records[info.Name]; ok {
		displaced = fromRecord(old)
	}
	records[info.Name] = toRecord(info)
	if err := s.save(records); err != nil {
		return nil, err
	}
	return displaced, nil
}

func (s *FileInfoStore) Get(name string) (*keyinfo.Info, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	r, ok := records[name]
	if !ok {
		return nil, keyinfo.ErrNotFound
	}
	return fromRecord(r), nil
}

func (s *FileInfoStore) Exists(name string) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	records, err := s.load()
	if err != nil {
		return false, err
	}
	_, ok := records[name]
	return ok, nil
}

func (s *FileInfoStore) List() ([]*keyinfo.Info, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*keyinfo.Info, 0, len(records))
	for _, r := range records {
		out = append(out, fromRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileInfoStore) Delete(name string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := records[name]; !ok {
		return nil
	}
	delete(records, name)
	return s.save(records)
}
