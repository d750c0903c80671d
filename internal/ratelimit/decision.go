package ratelimit

import (
	"context"
	"errors"

	"github.com/gitstash/relay/internal/quota"
)

// Reason explains how a rate verdict was derived
type Reason string

const (
	ReasonOK                Reason = "OK"
	ReasonNoToken           Reason = "NO_TOKEN"
	ReasonAuthFailed        Reason = "AUTH_FAILED"
	ReasonMalformedQuota    Reason = "MALFORMED_QUOTA"
	ReasonInsufficientQuota Reason = "INSUFFICIENT_QUOTA"
)

const (
	// quotaPerRequest is the quota backing one request per minute
	quotaPerRequest = 5_000_000
	// QuotaFloor is the minimum combined quota required to upload at all
	QuotaFloor = 2_500_000
)

// Verdict is the admission rate computed for a single request. It is
// created per request and consumed once; enforcement against PerMinute
// is delegated to the Registry.
type Verdict struct {
	PerMinute int
	Reason    Reason
	State     *quota.State
	Err       error
}

// QuotaFetcher is the capability the decider needs from the quota client
type QuotaFetcher interface {
	Fetch(ctx context.Context, token string) (*quota.State, error)
}

// Decider derives per-minute request limits from quota state
type Decider struct {
	quota QuotaFetcher
}

// NewDecider creates a decider backed by the given quota fetcher
func NewDecider(q QuotaFetcher) *Decider {
	return &Decider{quota: q}
}

// Decide computes the admission rate for a request carrying the given
// token. It is a total function: every failure collapses to the
// strictest limit of one request per minute. The limit is recomputed on
// every call so quota changes are reflected immediately, even when the
// underlying state comes from the quota client's cache.
func (d *Decider) Decide(ctx context.Context, token string) Verdict {
	if token == "" {
		return Verdict{PerMinute: 1, Reason: ReasonNoToken}
	}

	state, err := d.quota.Fetch(ctx, token)
	if err != nil {
		if errors.Is(err, quota.ErrMalformed) {
			return Verdict{PerMinute: 1, Reason: ReasonMalformedQuota, Err: err}
		}
		return Verdict{PerMinute: 1, Reason: ReasonAuthFailed, Err: err}
	}

	perMinute := int(state.Total() / quotaPerRequest)
	if perMinute < 1 {
		perMinute = 1
	}
	return Verdict{PerMinute: perMinute, Reason: ReasonOK, State: state}
}
