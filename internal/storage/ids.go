package storage

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDs: генератор ULID; монотонный источник энтропии защищён мьютексом
type IDs struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewIDs() *IDs {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &IDs{entropy: ulid.Monotonic(src, 0)}
}

// Next: новый идентификатор записи
func (g *IDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}
