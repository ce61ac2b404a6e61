package service

import (
	"context"
	"fmt"
	"strings"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/pricing"
)

// SubmitNegotiation stores a Waiting negotiation and alerts the owner. A
// customer can only negotiate under their own email.
func (s *Service) SubmitNegotiation(ctx context.Context, req domain.NegotiationRequest) (domain.Negotiation, error) {
	actor, err := requireRole(ctx, domain.RoleCustomer, domain.RoleOwner, domain.RoleCashier)
	if err != nil {
		return domain.Negotiation{}, err
	}

	customer := domain.Customer{
		Name:  strings.TrimSpace(req.Customer.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Customer.Email)),
		Phone: strings.TrimSpace(req.Customer.Phone),
	}
	if actor.Role == domain.RoleCustomer {
		customer.Email = strings.ToLower(actor.Email)
		if customer.Name == "" {
			customer.Name = actor.Name
		}
	}
	if customer.Name == "" || customer.Email == "" {
		return domain.Negotiation{}, &ValidationError{Field: "customer", Message: "name and email are required"}
	}
	if len(req.Items) == 0 {
		return domain.Negotiation{}, &ValidationError{Field: "items", Message: "at least one item is required"}
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.Brand) == "" || item.Quantity <= 0 || item.TotalCents < 0 {
			return domain.Negotiation{}, &ValidationError{Field: fmt.Sprintf("items[%d]", i), Message: "needs name, brand, a positive quantity and a non-negative total"}
		}
	}
	if req.OriginalTotalCents <= 0 {
		return domain.Negotiation{}, &ValidationError{Field: "original_total_cents", Message: "must be positive"}
	}
	if req.NegotiatedTotalCents <= 0 || req.NegotiatedTotalCents > req.OriginalTotalCents {
		return domain.Negotiation{}, &ValidationError{Field: "negotiated_total_cents", Message: "must be positive and not above the original total"}
	}

	created, err := s.repo.CreateNegotiation(ctx, domain.Negotiation{
		Customer:             customer,
		Items:                pricing.UnitPrices(req.Items),
		OriginalTotalCents:   req.OriginalTotalCents,
		NegotiatedTotalCents: req.NegotiatedTotalCents,
		Status:               domain.NegotiationWaiting,
		CreatedAt:            s.now(),
	})
	if err != nil {
		return domain.Negotiation{}, err
	}

	s.alerts.NegotiationSubmitted(ctx, *created)
	return *created, nil
}

func (s *Service) ListNegotiations(ctx context.Context) ([]domain.Negotiation, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return nil, err
	}
	return s.repo.ListNegotiations(ctx, "")
}

// ListCustomerNegotiations returns a customer's negotiations in every status.
// Customers always see their own; staff may ask for any email.
func (s *Service) ListCustomerNegotiations(ctx context.Context, email string) ([]domain.Negotiation, error) {
	actor, err := requireRole(ctx, domain.RoleCustomer, domain.RoleOwner, domain.RoleCashier)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleCustomer {
		email = actor.Email
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "is required"}
	}
	return s.repo.ListNegotiations(ctx, email)
}

// DecideNegotiation accepts or rejects a Waiting negotiation. Decisions are
// final; a second one yields store.ErrConflict.
func (s *Service) DecideNegotiation(ctx context.Context, id string, req domain.NegotiationDecisionRequest) (domain.Negotiation, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return domain.Negotiation{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Negotiation{}, &ValidationError{Field: "id", Message: "is required"}
	}

	status := domain.NegotiationRejected
	if req.Accept {
		status = domain.NegotiationAccepted
	}
	decided, err := s.repo.DecideNegotiation(ctx, id, status, s.now())
	if err != nil {
		return domain.Negotiation{}, err
	}

	s.logAudit(ctx, "negotiation_decide", "negotiation", decided.ID,
		fmt.Sprintf("status=%s,customer=%s,negotiated=%d", decided.Status, decided.Customer.Email, decided.NegotiatedTotalCents))
	return *decided, nil
}
