package archive

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"dream_incubator/internal/logger"
	"dream_incubator/internal/models"
)

// Key layout: device id, 0x00, received_at as BigEndian UnixNano, BigEndian sequence.
// Keys of one device therefore sort chronologically and batches sharing a
// received_at keep their arrival order.
const (
	sep     = 0x00
	tsLen   = 8
	seqLen  = 8
	suffLen = 1 + tsLen + seqLen
)

var ErrInvalidDevice = errors.New("device id must be non-empty and must not contain NUL")

type Store struct {
	DB  *badger.DB
	seq atomic.Uint64
	log *logger.Logger
}

// Open opens (or creates) the archive at path.
func Open(path string, log *logger.Logger) (*Store, error) {
	return open(badger.DefaultOptions(path), log)
}

// OpenInMemory keeps everything in memory. Used by tests.
func OpenInMemory(log *logger.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), log)
}

func open(opts badger.Options, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	opts = opts.
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Errorw("archive_open_failed", "err", err, "path", opts.Dir)
		return nil, fmt.Errorf("open archive: %w", err)
	}
	log.Infow("archive_opened", "path", opts.Dir, "in_memory", opts.InMemory)

	s := &Store{DB: db, log: log}
	s.seq.Store(uint64(time.Now().UnixNano()))
	return s, nil
}

func (s *Store) Close() error {
	if err := s.DB.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func devicePrefix(deviceID string) []byte {
	p := make([]byte, 0, len(deviceID)+1)
	p = append(p, deviceID...)
	return append(p, sep)
}

func timeKey(deviceID string, t time.Time, seq uint64) []byte {
	key := make([]byte, len(deviceID)+suffLen)
	copy(key, deviceID)
	key[len(deviceID)] = sep
	binary.BigEndian.PutUint64(key[len(deviceID)+1:], uint64(t.UnixNano()))
	binary.BigEndian.PutUint64(key[len(deviceID)+1+tsLen:], seq)
	return key
}

func encode(s models.HeartRateSample) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (models.HeartRateSample, error) {
	var s models.HeartRateSample
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s)
	return s, err
}

func validDevice(id string) bool {
	return id != "" && bytes.IndexByte([]byte(id), sep) < 0
}

// Append writes samples in one batch.
func (s *Store) Append(deviceID string, samples []models.HeartRateSample) error {
	if !validDevice(deviceID) {
		return ErrInvalidDevice
	}
	if len(samples) == 0 {
		return nil
	}

	wb := s.DB.NewWriteBatch()
	defer wb.Cancel()

	for _, sm := range samples {
		v, err := encode(sm)
		if err != nil {
			return fmt.Errorf("encode sample: %w", err)
		}
		if err := wb.Set(timeKey(deviceID, sm.ReceivedAt, s.seq.Add(1)), v); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		s.log.Errorw("archive_flush_failed", "err", err, "device_id", deviceID)
		return fmt.Errorf("flush batch: %w", err)
	}
	return nil
}

// Range returns the device's samples received within [from, to], oldest first.
// Zero bounds are open; limit <= 0 means no limit.
func (s *Store) Range(deviceID string, from, to time.Time, limit int) ([]models.HeartRateSample, error) {
	if !validDevice(deviceID) {
		return nil, ErrInvalidDevice
	}
	prefix := devicePrefix(deviceID)
	start := prefix
	if !from.IsZero() {
		start = timeKey(deviceID, from, 0)
	}
	end := timeKey(deviceID, time.Unix(0, math.MaxInt64), math.MaxUint64)
	if !to.IsZero() {
		end = timeKey(deviceID, to, math.MaxUint64)
	}

	var out []models.HeartRateSample
	err := s.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if bytes.Compare(item.Key(), end) > 0 {
				break
			}
			err := item.Value(func(val []byte) error {
				sm, err := decode(val)
				if err != nil {
					return fmt.Errorf("decode sample: %w", err)
				}
				out = append(out, sm)
				return nil
			})
			if err != nil {
				return err
			}
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns how many samples are archived for the device.
func (s *Store) Count(deviceID string) (int, error) {
	if !validDevice(deviceID) {
		return 0, ErrInvalidDevice
	}
	prefix := devicePrefix(deviceID)
	n := 0
	err := s.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
