package web

import (
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/nonceutil"
)

// CrumbService issues single-use tokens for the consent form: a crumb is
// handed out with the consent view and redeemed exactly once when the
// answer endpoint runs.
type CrumbService interface {
	Issue() (string, error)
	Redeem(crumb string) error
}

type hashicorpCrumbService struct {
	nonces nonceutil.NonceService
}

// NewCrumbService returns a CrumbService backed by an in-memory nonce
// service.
func NewCrumbService() (CrumbService, error) {
	nonces := nonceutil.NewNonceService()
	if err := nonces.Initialize(); err != nil {
		return nil, fmt.Errorf("could not initialize nonce service: %w", err)
	}
	return &hashicorpCrumbService{nonces: nonces}, nil
}

func (s *hashicorpCrumbService) Issue() (string, error) {
	crumb, _, err := s.nonces.Get()
	if err != nil {
		return "", err
	}
	return crumb, nil
}

func (s *hashicorpCrumbService) Redeem(crumb string) error {
	if !s.nonces.Redeem(crumb) {
		return fmt.Errorf("crumb not found or already used")
	}
	return nil
}
