package wal

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/fxsim/backtester/pkg/ferrors"
)

// WAL is an append-only, fsync'd log of ledger state transitions backed by
// a single file. Append is safe for concurrent use; ReadAll/ReadUncommitted
// are meant for recovery and are not safe to call concurrently with Append.
type WAL struct {
	mu            sync.Mutex
	file          *os.File
	path          string
	checkpointOff int64
}

// Open creates the WAL file if it does not exist and positions it for
// appending. The last checkpoint offset is recovered by scanning the file
// once at open time.
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: open", err)
	}

	w := &WAL{file: f, path: path}

	off, err := w.recoverCheckpointOffset()
	if err != nil {
		f.Close()
		return nil, err
	}
	w.checkpointOff = off

	return w, nil
}

// Append writes one record to the log, flushing and fsyncing before
// returning so that a crash immediately after Append never loses the
// write.
func (w *WAL) Append(entryType EntryType, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := encodeRecord(entryType, payload)

	if _, err := w.file.Write(buf); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: append write", err)
	}
	if err := w.file.Sync(); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: append fsync", err)
	}

	if entryType == EntryCheckpoint {
		off, err := w.file.Seek(0, io.SeekCurrent)
		if err != nil {
			return ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: checkpoint offset", err)
		}
		w.checkpointOff = off
	}

	return nil
}

// MarkCheckpoint writes a zero-length CHECKPOINT record and remembers its
// file offset so ReadUncommitted can skip everything before it.
func (w *WAL) MarkCheckpoint() error {
	return w.Append(EntryCheckpoint, nil)
}

// ReadAll decodes every record in the file from the start, in write order.
func (w *WAL) ReadAll() ([]Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.readFrom(0)
}

// ReadUncommitted decodes only the records written after the most recent
// checkpoint, for resuming a crashed run.
func (w *WAL) ReadUncommitted() ([]Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.readFrom(w.checkpointOff)
}

// TruncateToCheckpoint discards everything after the most recent
// checkpoint, shrinking the file to exactly that offset.
func (w *WAL) TruncateToCheckpoint() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(w.checkpointOff); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: truncate", err)
	}
	if _, err := w.file.Seek(w.checkpointOff, io.SeekStart); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: seek after truncate", err)
	}

	return nil
}

// Close fsyncs and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Sync(); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: close sync", err)
	}

	return w.file.Close()
}

// readFrom decodes records starting at byte offset start through EOF,
// failing closed on any magic/length/checksum mismatch rather than
// returning a partially-decoded log.
func (w *WAL) readFrom(start int64) ([]Record, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: reopen for read", err)
	}
	defer f.Close()

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: seek for read", err)
	}

	var records []Record
	header := make([]byte, headerSize)

	for {
		_, err := io.ReadFull(f, header)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: short header read", err)
		}

		magic := binary.LittleEndian.Uint32(header[0:4])
		if magic != Magic {
			return nil, ferrors.Newf(ferrors.ErrCodeWALCorrupt, "wal: bad magic %x at offset", magic)
		}

		entryType := EntryType(header[4])
		length := binary.LittleEndian.Uint32(header[5:9])
		wantCRC := binary.LittleEndian.Uint32(header[9:13])

		payload := make([]byte, length)
		if _, err := io.ReadFull(f, payload); err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: short payload read", err)
		}

		gotCRC := crc32Checksum(payload)
		if gotCRC != wantCRC {
			return nil, ferrors.New(ferrors.ErrCodeWALChecksum, "wal: checksum mismatch")
		}

		records = append(records, Record{Type: entryType, Payload: payload})
	}

	return records, nil
}

// recoverCheckpointOffset scans the file once at open time to find the byte
// offset immediately after the last CHECKPOINT record, so ReadUncommitted
// works correctly even after a process restart.
func (w *WAL) recoverCheckpointOffset() (int64, error) {
	records, offsets, err := readAllWithOffsets(w.path)
	if err != nil {
		return 0, err
	}

	last := int64(0)
	for i, r := range records {
		if r.Type == EntryCheckpoint {
			last = offsets[i]
		}
	}

	return last, nil
}

// readAllWithOffsets walks the same record framing as readFrom, failing on
// a bad magic or a short read, and also returns, for each record, the file
// offset immediately after that record ends — used only during checkpoint
// recovery at Open time. It does not verify payload checksums; ReadAll and
// ReadUncommitted do.
func readAllWithOffsets(path string) ([]Record, []int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: reopen for recovery scan", err)
	}
	defer f.Close()

	var records []Record
	var offsets []int64
	header := make([]byte, headerSize)
	var pos int64

	for {
		_, err := io.ReadFull(f, header)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: short header read during recovery", err)
		}

		magic := binary.LittleEndian.Uint32(header[0:4])
		if magic != Magic {
			return nil, nil, ferrors.Newf(ferrors.ErrCodeWALCorrupt, "wal: bad magic %x during recovery", magic)
		}

		entryType := EntryType(header[4])
		length := binary.LittleEndian.Uint32(header[5:9])

		payload := make([]byte, length)
		if _, err := io.ReadFull(f, payload); err != nil {
			return nil, nil, ferrors.Wrap(ferrors.ErrCodeWALCorrupt, "wal: short payload read during recovery", err)
		}

		pos += int64(headerSize) + int64(length)
		records = append(records, Record{Type: entryType, Payload: payload})
		offsets = append(offsets, pos)
	}

	return records, offsets, nil
}
