// Package deletion implements TableDeletionOracle: a read-only view
// over a transaction timestamp answering "is row R of segment S visible
// at ts T?". It is backed by a pebble LSM store of delete events — an
// embedded ordered-KV engine is exactly the shape a multi-version
// delete log needs: point writes keyed by (segment, row, delete-ts),
// range scans per segment at visibility-check time.
package deletion

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/infinity-db/queryfilter/internal/bitmask"
)

// Oracle answers visibility queries against a multi-version delete log.
// The core only ever reads from it during segment construction; writes
// (MarkDeleted) belong to the surrounding transaction manager, modeled
// here only far enough to make the oracle testable in isolation.
type Oracle struct {
	db *pebble.DB
}

// Open opens (creating if absent) a delete log at dir on the OS
// filesystem.
func Open(dir string) (*Oracle, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Oracle{db: db}, nil
}

// OpenInMemory opens an ephemeral delete log backed by an in-memory
// filesystem, for tests and for tables that never persist deletes
// across process restarts.
func OpenInMemory() (*Oracle, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}
	return &Oracle{db: db}, nil
}

// Close releases the underlying store.
func (o *Oracle) Close() error { return o.db.Close() }

// MarkDeleted records that row offset of segmentID was deleted at ts.
// The core never calls this itself; it exists so tests (and, in a full
// system, the transaction manager's commit path) can populate the log
// the core reads from.
func (o *Oracle) MarkDeleted(segmentID, offset uint32, ts uint64) error {
	return o.db.Set(encodeKey(segmentID, offset, ts), nil, pebble.Sync)
}

// HasAnyDeletes reports whether the log contains any delete record at
// all, for computing CommonQueryFilter's always_true shortcut (spec
// §4.6: always_true requires "no deletions exist on the table").
func (o *Oracle) HasAnyDeletes() (bool, error) {
	iter, err := o.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return false, err
	}
	defer iter.Close()
	has := iter.First()
	return has, iter.Error()
}

// ApplyVisibility clears bits in result (domain = segmentRowCount) for
// every row of segmentID deleted at a timestamp <= ts. It is a normal,
// non-error outcome for no bits to be cleared.
func (o *Oracle) ApplyVisibility(segmentID uint32, result *bitmask.Bitmask, ts uint64) error {
	lower := segmentPrefix(segmentID)
	upper := segmentPrefix(segmentID + 1)
	iter, err := o.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		_, offset, deleteTS := decodeKey(iter.Key())
		if deleteTS <= ts && offset < result.Count() {
			result.SetFalse(offset)
		}
	}
	return iter.Error()
}

// key layout: segmentID (4 bytes BE) || offset (4 bytes BE) || deleteTS (8 bytes BE)
func encodeKey(segmentID, offset uint32, ts uint64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[0:4], segmentID)
	binary.BigEndian.PutUint32(buf[4:8], offset)
	binary.BigEndian.PutUint64(buf[8:16], ts)
	return buf
}

func decodeKey(key []byte) (segmentID, offset uint32, ts uint64) {
	segmentID = binary.BigEndian.Uint32(key[0:4])
	offset = binary.BigEndian.Uint32(key[4:8])
	ts = binary.BigEndian.Uint64(key[8:16])
	return
}

func segmentPrefix(segmentID uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, segmentID)
	return buf
}
