package broadcast

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SessionID identifies one broadcaster lifetime two ways: a uuid for
// correlating against WAL records and logs, and a monotonic ulid for
// ops tooling that wants sessions ordered and grouped by start time.
type SessionID struct {
	UUID uuid.UUID
	ULID ulid.ULID
}

func (s SessionID) String() string {
	return s.ULID.String() + "/" + s.UUID.String()
}

var (
	monoMu sync.Mutex
	mono   io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// newSessionID mints a fresh SessionID. Called once per Broadcaster.
func newSessionID() SessionID {
	monoMu.Lock()
	defer monoMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		panic(err)
	}

	return SessionID{UUID: uuid.New(), ULID: id}
}
