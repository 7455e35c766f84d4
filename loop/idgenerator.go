package loop

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs for units of work and promises.
type IDGenerator interface {
	// Generate an ID
	Generate() string
}

var (
	idGeneratorLock    sync.Mutex
	idGeneratorInUse   bool
	idGeneratorCurrent IDGenerator
)

// UseSequentialIDGenerator configures the ID generator to produce small,
// deterministic, sequential IDs. This is the default.
func UseSequentialIDGenerator() {
	setIDGenerator(&sequentialIDGenerator{})
}

// UseXIDGenerator configures the ID generator to produce globally unique
// xid-based IDs. The IDs are no longer deterministic across runs.
func UseXIDGenerator() {
	setIDGenerator(xidGenerator{})
}

func setIDGenerator(g IDGenerator) {
	idGeneratorLock.Lock()
	defer idGeneratorLock.Unlock()

	if idGeneratorInUse {
		log.Panic("cannot change the ID generator after it has been used")
	}

	idGeneratorCurrent = g
	idGeneratorInUse = true
}

// GetIDGenerator returns the ID generator used by the current process.
func GetIDGenerator() IDGenerator {
	idGeneratorLock.Lock()
	defer idGeneratorLock.Unlock()

	if !idGeneratorInUse {
		idGeneratorCurrent = &sequentialIDGenerator{}
		idGeneratorInUse = true
	}

	return idGeneratorCurrent
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	return strconv.FormatUint(atomic.AddUint64(&g.nextID, 1), 10)
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}
