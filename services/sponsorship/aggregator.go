package sponsorship

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"

	"github.com/DKMKC/hub-ui/services/raisely"
)

// State is the observable outcome of an aggregation, in presentation
// priority order: loading, error, empty, ready.
type State string

const (
	StateLoading State = "loading"
	StateError   State = "error"
	StateEmpty   State = "empty"
	StateReady   State = "ready"
)

const (
	// goalField holds the monthly goal in major currency units on the
	// profile's public custom fields.
	goalField = "monthlyHubFundraisingGoal"

	// donationLimit bounds the donation read to a single page. Profiles
	// with more active subscriptions than this get a truncated total,
	// an accepted accuracy bound.
	donationLimit = 1000

	subscriptionStatusActive = "active"
)

var nullPayload = []byte("null")

// Donation is the donation record subset the aggregation needs. Amounts
// are integer minor currency units. A donation counts as an active
// monthly sponsorship iff it carries a non-empty subscription uuid.
type Donation struct {
	Amount           int64  `json:"amount"`
	SubscriptionUUID string `json:"subscriptionUuid"`
	ProfileUUID      string `json:"profileUuid"`
}

// Summary is the derived sponsorship state of a profile. TotalAmount and
// MonthlyGoal are minor currency units. Percentage is a decimal string
// with two fraction digits, or "0" when no goal is configured.
type Summary struct {
	TotalAmount       int64  `json:"totalAmount"`
	SubscriptionCount int    `json:"subscriptionCount"`
	MonthlyGoal       int64  `json:"monthlyGoal"`
	Percentage        string `json:"percentage"`
}

// Result carries exactly one terminal state. Summary is set iff State is
// StateReady, Err is set iff State is StateError.
type Result struct {
	State   State
	Summary *Summary
	Err     error
}

// Client is the data-access collaborator of the aggregator.
type Client interface {
	FetchDonations(ctx context.Context, q *raisely.DonationQuery) (*raisely.Envelope, error)
	FetchProfile(ctx context.Context, profileUUID string) (*raisely.Envelope, error)
}

type Aggregator struct {
	cl Client
}

func New(cl Client) *Aggregator {
	return &Aggregator{
		cl: cl,
	}
}

// Aggregate computes the sponsorship summary of a profile from scratch.
// It performs no writes, no retries and no caching; every invocation is a
// pure function of the two payloads fetched at that point in time.
//
// Failure handling is deliberately asymmetric: a rejected read surfaces
// as StateError carrying the originating message, while a malformed
// donation payload degrades to StateEmpty and a malformed profile payload
// just leaves the goal at zero. Callers must not unify these.
func (s *Aggregator) Aggregate(ctx context.Context, profileUUID string) *Result {
	if profileUUID == "" {
		return &Result{State: StateEmpty}
	}

	env, err := s.cl.FetchDonations(ctx, &raisely.DonationQuery{
		Profile:            profileUUID,
		SubscriptionStatus: subscriptionStatusActive,
		Limit:              donationLimit,
	})
	if err != nil {
		return &Result{State: StateError, Err: err}
	}

	donations, ok := decodeDonations(env)
	if !ok {
		return &Result{State: StateEmpty}
	}

	var total int64
	count := 0
	for _, d := range donations {
		// The query's status filter is advisory, re-verify the
		// subscription link on every donation.
		if d.SubscriptionUUID == "" {
			continue
		}
		total += d.Amount
		count++
	}

	penv, err := s.cl.FetchProfile(ctx, profileUUID)
	if err != nil {
		return &Result{State: StateError, Err: err}
	}
	goal := decodeGoal(penv)

	return &Result{
		State: StateReady,
		Summary: &Summary{
			TotalAmount:       total,
			SubscriptionCount: count,
			MonthlyGoal:       goal,
			Percentage:        percentage(total, goal),
		},
	}
}

func decodeDonations(env *raisely.Envelope) ([]Donation, bool) {
	if env == nil || len(env.Data) == 0 || bytes.Equal(env.Data, nullPayload) {
		return nil, false
	}
	var donations []Donation
	if err := json.Unmarshal(env.Data, &donations); err != nil {
		return nil, false
	}
	return donations, true
}

type profilePayload struct {
	Public map[string]any `json:"public"`
}

// decodeGoal reads the monthly goal custom field and converts it from
// major to minor currency units. A missing payload or an absent or
// non-numeric field yields zero, never an error.
func decodeGoal(env *raisely.Envelope) int64 {
	if env == nil || len(env.Data) == 0 {
		return 0
	}
	var p profilePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return 0
	}
	switch g := p.Public[goalField].(type) {
	case float64:
		return int64(math.Round(g * 100))
	case string:
		f, err := strconv.ParseFloat(g, 64)
		if err != nil {
			return 0
		}
		return int64(math.Round(f * 100))
	default:
		return 0
	}
}

// percentage derives percent-of-goal with two fraction digits. The
// zero-goal case is an explicit branch, division by zero never occurs.
func percentage(total int64, goal int64) string {
	if goal <= 0 {
		return "0"
	}
	return strconv.FormatFloat(float64(total)/float64(goal)*100, 'f', 2, 64)
}
