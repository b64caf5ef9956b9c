package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pairlink/internal/crypto"
	"pairlink/internal/domain"
)

const (
	channelsDir   = "channels"
	channelSuffix = ".json.enc"
)

// ErrBadChannelID rejects ids that cannot be used as file names.
var ErrBadChannelID = errors.New("channel id not usable as a file name")

// ChannelFileStore keeps one sealed file per channel under dir/channels.
type ChannelFileStore struct {
	dir string
	kdf crypto.KDF
	mu  sync.Mutex
}

// NewChannelFileStore returns a store rooted at dir. An empty kdf means
// Argon2id.
func NewChannelFileStore(dir string, kdf crypto.KDF) *ChannelFileStore {
	if kdf == "" {
		kdf = crypto.KDFArgon2id
	}
	return &ChannelFileStore{dir: filepath.Join(dir, channelsDir), kdf: kdf}
}

// SaveChannel seals rec under passphrase, replacing any earlier record.
func (s *ChannelFileStore) SaveChannel(passphrase string, rec domain.ChannelRecord) error {
	path, err := s.path(rec.ChannelID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b, err := seal(s.kdf, passphrase, raw, []byte(rec.ChannelID))
	if err != nil {
		return fmt.Errorf("seal channel %s: %w", rec.ChannelID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFile(path, b, 0o600)
}

// LoadChannel opens the record for id. ok is false if none is stored.
func (s *ChannelFileStore) LoadChannel(passphrase string, id domain.ChannelID) (domain.ChannelRecord, bool, error) {
	path, err := s.path(id)
	if err != nil {
		return domain.ChannelRecord{}, false, err
	}
	s.mu.Lock()
	b, err := readFile(path)
	s.mu.Unlock()
	if err != nil || b == nil {
		return domain.ChannelRecord{}, false, err
	}
	raw, err := open(passphrase, b, []byte(id))
	if err != nil {
		return domain.ChannelRecord{}, false, err
	}
	var rec domain.ChannelRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.ChannelRecord{}, false, err
	}
	if rec.ChannelID != id {
		return domain.ChannelRecord{}, false, ErrWrongPassphrase
	}
	return rec, true, nil
}

// ListChannels returns stored channel ids in lexical order.
func (s *ChannelFileStore) ListChannels() ([]domain.ChannelID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []domain.ChannelID
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), channelSuffix)
		if e.IsDir() || !ok {
			continue
		}
		ids = append(ids, domain.ChannelID(name))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// DeleteChannel removes the record for id. Deleting a missing record is not
// an error.
func (s *ChannelFileStore) DeleteChannel(id domain.ChannelID) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *ChannelFileStore) path(id domain.ChannelID) (string, error) {
	name := string(id)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadChannelID, name)
	}
	return filepath.Join(s.dir, name+channelSuffix), nil
}

// Compile-time assertion that ChannelFileStore implements domain.ChannelStore.
var _ domain.ChannelStore = (*ChannelFileStore)(nil)
