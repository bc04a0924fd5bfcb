package raisely

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/webtor-io/lazymap"
)

func newTestApi(url string) *Api {
	return &Api{
		url: url,
		cl:  http.DefaultClient,
		prepareRequest: func(r *http.Request) (*http.Request, error) {
			r.Header.Set("Authorization", "Bearer test-key")
			return r, nil
		},
		campaignCache: lazymap.New[*Campaign](&lazymap.Config{
			Expire: time.Minute,
		}),
	}
}

func TestFetchDonations(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data": [{"amount": 1000, "subscriptionUuid": "sub-1"}]}`))
	}))
	defer srv.Close()

	api := newTestApi(srv.URL)
	env, err := api.FetchDonations(context.Background(), &DonationQuery{
		Profile:            "profile-1",
		SubscriptionStatus: "active",
		Limit:              1000,
	})
	if err != nil {
		t.Fatalf("FetchDonations failed: %v", err)
	}

	if gotPath != "/v3/donations" {
		t.Errorf("expected path /v3/donations, got %s", gotPath)
	}
	if gotQuery["profile"] != "profile-1" {
		t.Errorf("expected profile query 'profile-1', got %q", gotQuery["profile"])
	}
	if gotQuery["subscriptionStatus"] != "active" {
		t.Errorf("expected subscriptionStatus 'active', got %q", gotQuery["subscriptionStatus"])
	}
	if gotQuery["limit"] != "1000" {
		t.Errorf("expected limit '1000', got %q", gotQuery["limit"])
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}

	var donations []map[string]any
	if err := json.Unmarshal(env.Data, &donations); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if len(donations) != 1 {
		t.Errorf("expected 1 donation, got %d", len(donations))
	}
}

func TestFetchDonations_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	api := newTestApi(srv.URL)
	_, err := api.FetchDonations(context.Background(), &DonationQuery{Profile: "p", SubscriptionStatus: "active", Limit: 1000})
	if err == nil {
		t.Fatal("expected an error on status 500")
	}
}

func TestFetchProfile(t *testing.T) {
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"data": {"public": {"monthlyHubFundraisingGoal": 250}}}`))
	}))
	defer srv.Close()

	api := newTestApi(srv.URL)
	env, err := api.FetchProfile(context.Background(), "profile-1")
	if err != nil {
		t.Fatalf("FetchProfile failed: %v", err)
	}

	if gotPath != "/v3/profiles/profile-1" {
		t.Errorf("expected path /v3/profiles/profile-1, got %s", gotPath)
	}
	if len(env.Data) == 0 {
		t.Error("expected a payload")
	}
}

func TestGetCampaignCached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"data": {"uuid": "c-1", "name": "Main", "currency": "AUD"}}`))
	}))
	defer srv.Close()

	api := newTestApi(srv.URL)

	for i := 0; i < 3; i++ {
		cmp, err := api.GetCampaignCached(context.Background(), "c-1")
		if err != nil {
			t.Fatalf("GetCampaignCached failed: %v", err)
		}
		if cmp.Currency != "AUD" {
			t.Errorf("expected currency AUD, got %q", cmp.Currency)
		}
	}

	if calls != 1 {
		t.Errorf("expected a single upstream call, got %d", calls)
	}
}
