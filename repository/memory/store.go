package memory

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

// Store keeps raffle state in process memory. A writing unit of work holds the
// write lock from Begin until Commit or Rollback and works on a private copy,
// so writers serialize the same way row locks do in Postgres. Committed
// snapshots are frozen and swapped in whole, so readers load one without locking.
type Store struct {
	writeMu sync.Mutex
	current atomic.Pointer[storeData]
	now     func() time.Time
}

type storeData struct {
	raffles  map[int64]*entities.Raffle
	entrants map[int64][]*entities.Entrant
	requests map[int64]map[string]*entities.RandomnessRequest
	draws    map[int64][]*entities.DrawResult
	accounts map[common.Address]*entities.Account
	history  []*entities.BalanceHistory

	nextEntrantID int64
	nextDrawID    int64
	nextHistoryID int64

	frozen bool // set once committed; mutations are rejected
}

var errReadOnly = errors.New("read-only unit of work cannot modify the store")

// NewStore creates an empty store
func NewStore() *Store {
	s := &Store{now: time.Now}
	data := newStoreData()
	data.frozen = true
	s.current.Store(data)
	return s
}

func (d *storeData) checkWritable() error {
	if d.frozen {
		return errReadOnly
	}
	return nil
}

func newStoreData() *storeData {
	return &storeData{
		raffles:       make(map[int64]*entities.Raffle),
		entrants:      make(map[int64][]*entities.Entrant),
		requests:      make(map[int64]map[string]*entities.RandomnessRequest),
		draws:         make(map[int64][]*entities.DrawResult),
		accounts:      make(map[common.Address]*entities.Account),
		nextEntrantID: 1,
		nextDrawID:    1,
		nextHistoryID: 1,
	}
}

// clone deep-copies every record so a rolled back unit of work leaves no trace
func (d *storeData) clone() *storeData {
	c := &storeData{
		raffles:       make(map[int64]*entities.Raffle, len(d.raffles)),
		entrants:      make(map[int64][]*entities.Entrant, len(d.entrants)),
		requests:      make(map[int64]map[string]*entities.RandomnessRequest, len(d.requests)),
		draws:         make(map[int64][]*entities.DrawResult, len(d.draws)),
		accounts:      make(map[common.Address]*entities.Account, len(d.accounts)),
		history:       make([]*entities.BalanceHistory, 0, len(d.history)),
		nextEntrantID: d.nextEntrantID,
		nextDrawID:    d.nextDrawID,
		nextHistoryID: d.nextHistoryID,
	}

	for id, r := range d.raffles {
		c.raffles[id] = r.Clone()
	}
	for id, list := range d.entrants {
		copied := make([]*entities.Entrant, len(list))
		for i, e := range list {
			copied[i] = e.Clone()
		}
		c.entrants[id] = copied
	}
	for id, byID := range d.requests {
		copied := make(map[string]*entities.RandomnessRequest, len(byID))
		for key, req := range byID {
			copied[key] = req.Clone()
		}
		c.requests[id] = copied
	}
	for id, list := range d.draws {
		copied := make([]*entities.DrawResult, len(list))
		for i, dr := range list {
			copied[i] = dr.Clone()
		}
		c.draws[id] = copied
	}
	for addr, acct := range d.accounts {
		c.accounts[addr] = acct.Clone()
	}
	for _, h := range d.history {
		c.history = append(c.history, h.Clone())
	}

	return c
}
