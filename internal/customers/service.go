package customers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aquabill/aquabill/internal/shared"
)

type Service struct {
	repo  Repository
	audit shared.AuditRecorder
}

func NewService(repo Repository, audit shared.AuditRecorder) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	return &Service{repo: repo, audit: audit}
}

func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	customer := Customer{
		Name:           strings.TrimSpace(req.Name),
		Address:        strings.TrimSpace(req.Address),
		WhatsAppNumber: strings.TrimSpace(req.WhatsAppNumber),
	}
	if err := requireFields(map[string]string{
		"name":            customer.Name,
		"address":         customer.Address,
		"whatsapp_number": customer.WhatsAppNumber,
	}); err != nil {
		return nil, err
	}

	var created *Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		created, err = repo.Create(ctx, customer)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return created, nil
}

// Update applies the supplied fields only. An empty request returns the stored record untouched.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	if req.Empty() {
		return s.repo.Get(ctx, id)
	}
	fields := map[string]string{}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
		fields["name"] = trimmed
	}
	if req.Address != nil {
		trimmed := strings.TrimSpace(*req.Address)
		req.Address = &trimmed
		fields["address"] = trimmed
	}
	if req.WhatsAppNumber != nil {
		trimmed := strings.TrimSpace(*req.WhatsAppNumber)
		req.WhatsAppNumber = &trimmed
		fields["whatsapp_number"] = trimmed
	}
	if err := requireFields(fields); err != nil {
		return nil, err
	}

	var updated *Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		updated, err = repo.Update(ctx, id, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Customer, error) {
	return s.repo.List(ctx)
}

// Delete removes a customer together with its meter readings and invoices.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   "customer.delete",
		Entity:   "customer",
		EntityID: strconv.FormatInt(id, 10),
	})
	return nil
}

func requireFields(fields map[string]string) error {
	for _, name := range []string{"name", "address", "whatsapp_number"} {
		if v, ok := fields[name]; ok && v == "" {
			return fmt.Errorf("%w: %s is required", shared.ErrValidation, name)
		}
	}
	return nil
}
