package session

import (
	"context"

	"github.com/ozgate/ozgate/pkg/oz"
)

// fakeAPI is a counting oz.AuthorizationAPI for lifecycle tests.
type fakeAPI struct {
	profile      *oz.Profile
	profileErr   error
	profileCalls int
	// profileCreds records the ticket each profile call carried.
	profileCreds []*oz.Ticket

	reissued     *oz.Ticket
	reissueErr   error
	reissueCalls int

	client    *oz.Client
	lookupErr error
}

func (f *fakeAPI) FetchProfile(ctx context.Context, credentials *oz.Ticket) (*oz.Profile, error) {
	f.profileCalls++
	f.profileCreds = append(f.profileCreds, credentials)
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	profile := *f.profile
	return &profile, nil
}

func (f *fakeAPI) Reissue(ctx context.Context, opts oz.ReissueOptions, credentials *oz.Ticket) (*oz.Ticket, error) {
	f.reissueCalls++
	if f.reissueErr != nil {
		return nil, f.reissueErr
	}
	ticket := *f.reissued
	return &ticket, nil
}

func (f *fakeAPI) LookupClient(ctx context.Context, clientID string) (*oz.Client, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.client, nil
}
