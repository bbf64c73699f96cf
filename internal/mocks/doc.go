// Package mocks provides centralized mock implementations for testing.
//
// Each mock exposes a function field per interface method. When the field is
// nil the mock returns its default values, so tests only wire the calls they
// care about:
//
//	gateway := &mocks.MockGateway{
//	    GetSessionFn: func(ctx context.Context, token string) (*domain.Session, error) {
//	        return nil, walletauth.ErrSessionInvalid
//	    },
//	}
//
// Calls are counted so tests can assert that a dependency was never reached.
package mocks
