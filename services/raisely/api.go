package raisely

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/webtor-io/lazymap"
)

const (
	apiHostFlag      = "raisely-api-host"
	apiPortFlag      = "raisely-api-port"
	apiSecureFlag    = "raisely-api-secure"
	apiKeyFlag       = "raisely-api-key"
	CampaignUUIDFlag = "raisely-campaign-uuid"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   apiHostFlag,
			Usage:  "raisely api host",
			EnvVar: "RAISELY_API_HOST",
			Value:  "api.raisely.com",
		},
		cli.IntFlag{
			Name:   apiPortFlag,
			Usage:  "raisely api port",
			EnvVar: "RAISELY_API_PORT",
			Value:  443,
		},
		cli.BoolTFlag{
			Name:   apiSecureFlag,
			Usage:  "raisely api secure (https)",
			EnvVar: "RAISELY_API_SECURE",
		},
		cli.StringFlag{
			Name:   apiKeyFlag,
			Usage:  "raisely api key",
			Value:  "",
			EnvVar: "RAISELY_API_KEY",
		},
		cli.StringFlag{
			Name:   CampaignUUIDFlag,
			Usage:  "raisely campaign uuid",
			Value:  "",
			EnvVar: "RAISELY_CAMPAIGN_UUID",
		},
	)
}

// Envelope is the common response wrapper of the Raisely API. The payload
// shape under data varies per endpoint, so it is kept raw and interpreted
// by the caller.
type Envelope struct {
	Data json.RawMessage `json:"data"`
}

// DonationQuery selects donations of a single profile. Only the first
// Limit donations are returned, the client never paginates further.
type DonationQuery struct {
	Profile            string
	SubscriptionStatus string
	Limit              int
}

// Campaign is the campaign record subset needed for display purposes.
type Campaign struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type Api struct {
	url            string
	cl             *http.Client
	prepareRequest func(r *http.Request) (*http.Request, error)
	campaignCache  *lazymap.LazyMap[*Campaign]
}

func New(c *cli.Context, cl *http.Client) *Api {
	host := c.String(apiHostFlag)
	if host == "" {
		return nil
	}
	port := c.Int(apiPortFlag)
	secure := c.BoolT(apiSecureFlag)
	key := c.String(apiKeyFlag)

	protocol := "http"
	if secure {
		protocol = "https"
	}
	u := fmt.Sprintf("%v://%v:%v", protocol, host, port)

	prepareRequest := func(r *http.Request) (*http.Request, error) {
		if key != "" {
			r.Header.Set("Authorization", "Bearer "+key)
		}
		r.Header.Set("Accept", "application/json")
		return r, nil
	}

	log.Infof("raisely api endpoint %v", u)

	return &Api{
		url:            u,
		cl:             cl,
		prepareRequest: prepareRequest,
		campaignCache: lazymap.New[*Campaign](&lazymap.Config{
			Expire:      time.Minute,
			ErrorExpire: 10 * time.Second,
		}),
	}
}

func (s *Api) doRequest(ctx context.Context, u string) (*Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	req, err = s.prepareRequest(req)
	if err != nil {
		return nil, errors.Wrap(err, "prepare request")
	}

	resp, err := s.cl.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}

	return &env, nil
}

// FetchDonations retrieves the donations of a profile. The server-side
// status filter is advisory, callers re-verify the subscription link on
// each returned donation.
func (s *Api) FetchDonations(ctx context.Context, q *DonationQuery) (*Envelope, error) {
	u, _ := url.Parse(fmt.Sprintf("%s/v3/donations", s.url))
	qs := u.Query()
	qs.Set("profile", q.Profile)
	qs.Set("subscriptionStatus", q.SubscriptionStatus)
	qs.Set("limit", strconv.Itoa(q.Limit))
	u.RawQuery = qs.Encode()

	return s.doRequest(ctx, u.String())
}

// FetchProfile retrieves a profile record by uuid.
func (s *Api) FetchProfile(ctx context.Context, profileUUID string) (*Envelope, error) {
	return s.doRequest(ctx, fmt.Sprintf("%s/v3/profiles/%s", s.url, profileUUID))
}

// FetchCampaign retrieves a campaign record by uuid.
func (s *Api) FetchCampaign(ctx context.Context, campaignUUID string) (*Campaign, error) {
	env, err := s.doRequest(ctx, fmt.Sprintf("%s/v3/campaigns/%s", s.url, campaignUUID))
	if err != nil {
		return nil, err
	}
	if env == nil || len(env.Data) == 0 {
		return nil, nil
	}
	var cmp Campaign
	if err := json.Unmarshal(env.Data, &cmp); err != nil {
		return nil, errors.Wrap(err, "decode campaign")
	}
	return &cmp, nil
}

// GetCampaignCached retrieves a campaign record by uuid with caching.
func (s *Api) GetCampaignCached(ctx context.Context, campaignUUID string) (*Campaign, error) {
	return s.campaignCache.Get(campaignUUID, func() (*Campaign, error) {
		return s.FetchCampaign(ctx, campaignUUID)
	})
}
