package store

import (
	"context"
	"errors"
	"sync"

	"swiftdrop-backend/internal/models"
)

// ErrDriverNotFound is returned by the in-memory store for unknown drivers.
var ErrDriverNotFound = errors.New("store: driver not found")

// MemoryStore is an in-memory DriverStore/BranchStore used in tests and local
// development without Firestore credentials.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string]*models.DriverDoc
	branches map[string][]models.Zone
	subs     map[string]map[int]func(models.DriverDoc)
	nextSub  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]*models.DriverDoc),
		branches: make(map[string][]models.Zone),
		subs:     make(map[string]map[int]func(models.DriverDoc)),
	}
}

// PutDriver seeds or replaces a driver document and notifies subscribers.
func (m *MemoryStore) PutDriver(driverID string, doc models.DriverDoc) {
	if doc.Violations != nil {
		doc.ViolationsPresent = true
	}
	m.mu.Lock()
	cp := cloneDoc(doc)
	m.docs[driverID] = &cp
	m.mu.Unlock()
	m.notify(driverID)
}

// PutBranch seeds the zone list for a branch.
func (m *MemoryStore) PutBranch(branchID string, zones []models.Zone) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branches[branchID] = append([]models.Zone(nil), zones...)
}

func (m *MemoryStore) Get(ctx context.Context, driverID string) (*models.DriverDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[driverID]
	if !ok {
		return nil, ErrDriverNotFound
	}
	cp := cloneDoc(*doc)
	return &cp, nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, driverID string, fn func(models.DriverDoc)) (func(), error) {
	m.mu.Lock()
	m.nextSub++
	id := m.nextSub
	if m.subs[driverID] == nil {
		m.subs[driverID] = make(map[int]func(models.DriverDoc))
	}
	m.subs[driverID][id] = fn
	doc, ok := m.docs[driverID]
	var initial *models.DriverDoc
	if ok {
		cp := cloneDoc(*doc)
		initial = &cp
	}
	m.mu.Unlock()

	// Firestore delivers the current state as the first snapshot.
	if initial != nil {
		fn(*initial)
	}

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[driverID], id)
	}
	return cancel, nil
}

func (m *MemoryStore) SetLocation(ctx context.Context, driverID string, snap models.LocationSnapshot) error {
	m.mu.Lock()
	doc, ok := m.docs[driverID]
	if !ok {
		m.mu.Unlock()
		return ErrDriverNotFound
	}
	cp := snap
	doc.Location = &cp
	m.mu.Unlock()
	m.notify(driverID)
	return nil
}

func (m *MemoryStore) AppendViolation(ctx context.Context, driverID string, v models.Violation) error {
	m.mu.Lock()
	doc, ok := m.docs[driverID]
	if !ok {
		m.mu.Unlock()
		return ErrDriverNotFound
	}
	doc.Violations = append(doc.Violations, v)
	doc.ViolationsPresent = true
	m.mu.Unlock()
	m.notify(driverID)
	return nil
}

func (m *MemoryStore) SetViolations(ctx context.Context, driverID string, violations []models.Violation) error {
	m.mu.Lock()
	doc, ok := m.docs[driverID]
	if !ok {
		m.mu.Unlock()
		return ErrDriverNotFound
	}
	doc.Violations = append([]models.Violation(nil), violations...)
	doc.ViolationsPresent = true
	m.mu.Unlock()
	m.notify(driverID)
	return nil
}

func (m *MemoryStore) BranchZones(ctx context.Context, branchID string) ([]models.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	zones, ok := m.branches[branchID]
	if !ok {
		return []models.Zone{}, nil
	}
	return append([]models.Zone(nil), zones...), nil
}

func (m *MemoryStore) notify(driverID string) {
	m.mu.Lock()
	doc, ok := m.docs[driverID]
	if !ok {
		m.mu.Unlock()
		return
	}
	cp := cloneDoc(*doc)
	var fns []func(models.DriverDoc)
	for _, fn := range m.subs[driverID] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(cp)
	}
}

func cloneDoc(doc models.DriverDoc) models.DriverDoc {
	doc.Violations = append([]models.Violation(nil), doc.Violations...)
	if doc.Location != nil {
		loc := *doc.Location
		doc.Location = &loc
	}
	return doc
}
