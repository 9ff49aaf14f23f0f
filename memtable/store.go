package memtable

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/validation"
)

// AbortReason is reported to subscribers of a dropped table.
const AbortReason = "table unavailable"

type table struct {
	docs map[string]feed.Document
}

// Store is an in-memory set of tables that publishes every write to the
// feeds subscribed to the table. It implements feed.Source.
type Store struct {
	mu     sync.Mutex
	tables map[string]*table
	subs   map[string]map[*subscription]struct{}
	closed bool
	log    *logger.Logger
}

var _ feed.Source = (*Store)(nil)

// New creates an empty store. A nil log discards output.
func New(log *logger.Logger) *Store {
	return &Store{
		tables: make(map[string]*table),
		subs:   make(map[string]map[*subscription]struct{}),
		log:    logger.OrNop(log).WithComponent("memtable"),
	}
}

func (s *Store) unavailable() error {
	return apperrors.ServiceUnavailable("table store")
}

// lookup returns the named table. The caller holds s.mu.
func (s *Store) lookup(name string) (*table, error) {
	if s.closed {
		return nil, s.unavailable()
	}
	t, ok := s.tables[name]
	if !ok {
		return nil, apperrors.NotFound("table", name)
	}
	return t, nil
}

// emit queues a change for every subscriber of name. The caller holds s.mu.
func (s *Store) emit(name string, oldVal, newVal feed.Document) {
	if len(s.subs[name]) == 0 {
		return
	}
	p, err := feed.ChangePayload(feed.ChangeRecord{OldVal: oldVal.Clone(), NewVal: newVal.Clone()})
	if err != nil {
		p = feed.ErrorPayload(err)
	}
	for sub := range s.subs[name] {
		sub.push(p)
	}
}

// CreateTable creates an empty table. Existing subscriptions on the name
// resume delivery.
func (s *Store) CreateTable(ctx context.Context, name string) error {
	if !validation.TableName(name) {
		return apperrors.InvalidInput("table", "table names may contain only letters, digits and underscores")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.unavailable()
	}
	if _, ok := s.tables[name]; ok {
		return apperrors.AlreadyExists("table", name)
	}
	s.tables[name] = &table{docs: make(map[string]feed.Document)}
	s.log.Debug("table created", logger.Fields(logger.FieldTable, name))
	return nil
}

// DropTable removes a table. Every subscriber receives one
// "Changefeed aborted (table unavailable)." error and stays attached.
func (s *Store) DropTable(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(name); err != nil {
		return err
	}
	delete(s.tables, name)

	abort := feed.AbortPayload(AbortReason)
	for sub := range s.subs[name] {
		sub.push(abort)
	}
	s.log.Debug("table dropped", logger.Fields(logger.FieldTable, name, "subscribers", len(s.subs[name])))
	return nil
}

// Tables returns the table names in sorted order.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, s.unavailable()
	}
	return slices.Sorted(maps.Keys(s.tables)), nil
}

// Insert stores a new document. A missing id is generated.
func (s *Store) Insert(ctx context.Context, name string, doc feed.Document) (feed.Document, error) {
	if doc == nil {
		return nil, apperrors.InvalidInput("document", "document must be an object")
	}
	doc = doc.Clone()
	if _, ok := doc.ID(); !ok {
		doc[feed.IDField] = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	key := doc.Key()
	if _, ok := t.docs[key]; ok {
		return nil, apperrors.AlreadyExists("document", key)
	}
	t.docs[key] = doc
	s.emit(name, nil, doc)
	return doc.Clone(), nil
}

// Update merges patch into the document with the given id.
func (s *Store) Update(ctx context.Context, name string, id any, patch feed.Document) (feed.Document, error) {
	key := feed.KeyOf(id)
	if pid, ok := patch.ID(); ok && feed.KeyOf(pid) != key {
		return nil, apperrors.InvalidInput(feed.IDField, "the primary key cannot be changed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	old, ok := t.docs[key]
	if !ok {
		return nil, apperrors.NotFound("document", key)
	}
	updated := old.Clone()
	for k, v := range patch {
		updated[k] = v
	}
	t.docs[key] = updated
	s.emit(name, old, updated)
	return updated.Clone(), nil
}

// Replace swaps the document with the given id for doc, whose id must match.
func (s *Store) Replace(ctx context.Context, name string, id any, doc feed.Document) (feed.Document, error) {
	key := feed.KeyOf(id)
	if did, ok := doc.ID(); !ok || feed.KeyOf(did) != key {
		return nil, apperrors.InvalidInput(feed.IDField, "the replacement must carry the same primary key")
	}
	doc = doc.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	old, ok := t.docs[key]
	if !ok {
		return nil, apperrors.NotFound("document", key)
	}
	t.docs[key] = doc
	s.emit(name, old, doc)
	return doc.Clone(), nil
}

// Delete removes the document with the given id and returns it.
func (s *Store) Delete(ctx context.Context, name string, id any) (feed.Document, error) {
	key := feed.KeyOf(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	old, ok := t.docs[key]
	if !ok {
		return nil, apperrors.NotFound("document", key)
	}
	delete(t.docs, key)
	s.emit(name, old, nil)
	return old.Clone(), nil
}

// Get returns the document with the given id.
func (s *Store) Get(ctx context.Context, name string, id any) (feed.Document, error) {
	key := feed.KeyOf(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	doc, ok := t.docs[key]
	if !ok {
		return nil, apperrors.NotFound("document", key)
	}
	return doc.Clone(), nil
}

// Scan returns a finite cursor over the table's documents ordered by id.
func (s *Store) Scan(ctx context.Context, name string) (*feed.Rows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	docs := make([]feed.Document, 0, len(t.docs))
	for _, key := range slices.Sorted(maps.Keys(t.docs)) {
		docs = append(docs, t.docs[key].Clone())
	}
	return feed.NewRows(docs), nil
}

// Open subscribes to changes on an existing table.
func (s *Store) Open(ctx context.Context, req feed.Request) (feed.Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(req.Table); err != nil {
		return nil, err
	}
	sub := newSubscription(s, req.Table)
	if s.subs[req.Table] == nil {
		s.subs[req.Table] = make(map[*subscription]struct{})
	}
	s.subs[req.Table][sub] = struct{}{}
	return sub, nil
}

func (s *Store) unsubscribe(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[sub.table], sub)
	if len(s.subs[sub.table]) == 0 {
		delete(s.subs, sub.table)
	}
}

// Subscribers returns the number of open subscriptions on a table name.
func (s *Store) Subscribers(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[name])
}

// Close ends every subscription with end-of-stream and rejects further use.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, subs := range s.subs {
		for sub := range subs {
			sub.end()
		}
	}
	s.log.Debug("store closed")
	return nil
}
