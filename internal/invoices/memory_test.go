package invoices

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aquabill/aquabill/internal/billingconfig"
	"github.com/aquabill/aquabill/internal/customers"
	"github.com/aquabill/aquabill/internal/readings"
	"github.com/aquabill/aquabill/internal/shared"
)

type memoryStore struct {
	clock     time.Time
	config    *billingconfig.Config
	customers map[int64]customers.Customer
	readings  map[int64]readings.MeterReading
	invoices  map[int64]Invoice
	nextID    int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		clock:     time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC),
		customers: map[int64]customers.Customer{},
		readings:  map[int64]readings.MeterReading{},
		invoices:  map[int64]Invoice{},
	}
}

func (s *memoryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, s)
}

func (s *memoryStore) Configs() billingconfig.Repository {
	return memoryConfigs{s}
}

func (s *memoryStore) Reading(_ context.Context, id int64) (*readings.MeterReading, error) {
	m, ok := s.readings[id]
	if !ok {
		return nil, fmt.Errorf("meter reading %d: %w", id, shared.ErrNotFound)
	}
	return &m, nil
}

func (s *memoryStore) Customer(_ context.Context, id int64) (*customers.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return &c, nil
}

func (s *memoryStore) Insert(_ context.Context, inv Invoice) (*Invoice, error) {
	if _, ok := s.customers[inv.CustomerID]; !ok {
		return nil, fmt.Errorf("customer %d: %w", inv.CustomerID, shared.ErrNotFound)
	}
	s.nextID++
	inv.ID = s.nextID
	inv.CreatedAt = s.tick()
	inv.UpdatedAt = inv.CreatedAt
	s.invoices[inv.ID] = inv
	return &inv, nil
}

func (s *memoryStore) Get(_ context.Context, id int64) (*Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, shared.ErrNotFound)
	}
	return &inv, nil
}

func (s *memoryStore) List(_ context.Context, filter ListFilter) ([]Invoice, error) {
	list := []Invoice{}
	for _, inv := range s.invoices {
		if filter.CustomerID > 0 && inv.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		list = append(list, inv)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (s *memoryStore) UpdateStatus(_ context.Context, id int64, status Status) (*Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, shared.ErrNotFound)
	}
	inv.Status = status
	inv.UpdatedAt = s.tick()
	s.invoices[id] = inv
	return &inv, nil
}

func (s *memoryStore) PendingDueBefore(_ context.Context, asOf time.Time, limit int) ([]Invoice, error) {
	list := []Invoice{}
	for _, inv := range s.invoices {
		if inv.Status == StatusPending && inv.DueDate.Before(asOf) {
			list = append(list, inv)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

type memoryConfigs struct {
	s *memoryStore
}

func (m memoryConfigs) WithTx(ctx context.Context, fn func(context.Context, billingconfig.Repository) error) error {
	return fn(ctx, m)
}

func (m memoryConfigs) Current(context.Context) (*billingconfig.Config, error) {
	if m.s.config == nil {
		return nil, fmt.Errorf("billing configuration: %w", shared.ErrNotFound)
	}
	cfg := *m.s.config
	return &cfg, nil
}

func (m memoryConfigs) ResolveOrCreate(ctx context.Context, defaults billingconfig.Config) (*billingconfig.Config, error) {
	if m.s.config == nil {
		return m.Create(ctx, defaults)
	}
	return m.Current(ctx)
}

func (m memoryConfigs) Create(ctx context.Context, cfg billingconfig.Config) (*billingconfig.Config, error) {
	cfg.ID = billingconfig.SingletonID
	m.s.config = &cfg
	return m.Current(ctx)
}

func (m memoryConfigs) Update(ctx context.Context, in billingconfig.UpdateInput) (*billingconfig.Config, error) {
	updated := in.Apply(*m.s.config)
	m.s.config = &updated
	return m.Current(ctx)
}
