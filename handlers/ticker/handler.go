package ticker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dustin/go-humanize"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/text/currency"

	"github.com/DKMKC/hub-ui/services/common"
	"github.com/DKMKC/hub-ui/services/raisely"
	sess "github.com/DKMKC/hub-ui/services/session"
	"github.com/DKMKC/hub-ui/services/sponsorship"
)

const defaultCurrency = "USD"

type Data struct {
	State          sponsorship.State
	Summary        *sponsorship.Summary
	Total          string
	Goal           string
	Percentage     string
	SupporterCount string
	Profile        string
	EmbedURL       string
	Error          string
}

type SummaryResponse struct {
	State   sponsorship.State    `json:"state"`
	Summary *sponsorship.Summary `json:"summary,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type Handler struct {
	agg          *sponsorship.Aggregator
	api          *raisely.Api
	campaignUUID string
	domain       string
}

func RegisterHandler(c *cli.Context, r *gin.Engine, api *raisely.Api, agg *sponsorship.Aggregator) {
	h := &Handler{
		agg:          agg,
		api:          api,
		campaignUUID: c.String(raisely.CampaignUUIDFlag),
		domain:       c.String(common.DomainFlag),
	}
	r.GET("/ticker", h.get)
	r.GET("/ticker/embed", h.embed)
	r.GET("/ticker/summary.json", cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet},
	}), h.summary)
}

func (s *Handler) get(c *gin.Context) {
	p := s.resolveProfile(c)
	res := s.agg.Aggregate(c.Request.Context(), p)
	c.HTML(http.StatusOK, "ticker", s.makeData(c, p, res))
}

// embed renders the embeddable widget shell. The shell shows the loading
// state and swaps in the summary fetched from the json endpoint.
func (s *Handler) embed(c *gin.Context) {
	p := s.resolveProfile(c)
	c.HTML(http.StatusOK, "ticker_embed", &Data{
		State:   sponsorship.StateLoading,
		Profile: p,
	})
}

func (s *Handler) summary(c *gin.Context) {
	res := s.agg.Aggregate(c.Request.Context(), s.resolveProfile(c))
	resp := &SummaryResponse{
		State:   res.State,
		Summary: res.Summary,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// resolveProfile prefers an explicit profile query param over the session
// selection so the widget can be embedded on external pages.
func (s *Handler) resolveProfile(c *gin.Context) string {
	if p := c.Query("profile"); p != "" {
		if _, err := uuid.Parse(p); err == nil {
			return p
		}
		return ""
	}
	return sess.GetProfileFromContext(c)
}

// makeData folds the empty state into an all-zero summary for display, a
// blank ticker and a zero-state ticker look the same on the page.
func (s *Handler) makeData(c *gin.Context, profile string, res *sponsorship.Result) *Data {
	d := &Data{
		State:   res.State,
		Profile: profile,
	}
	if profile != "" {
		d.EmbedURL = fmt.Sprintf("%s/ticker/embed?profile=%s", s.domain, url.QueryEscape(profile))
	}
	switch res.State {
	case sponsorship.StateError:
		d.Error = res.Err.Error()
	case sponsorship.StateReady, sponsorship.StateEmpty:
		sum := res.Summary
		if sum == nil {
			sum = &sponsorship.Summary{Percentage: "0"}
		}
		cur := s.campaignCurrency(c.Request.Context())
		d.Summary = sum
		d.Total = formatAmount(sum.TotalAmount, cur)
		d.SupporterCount = humanize.Comma(int64(sum.SubscriptionCount))
		d.Percentage = sum.Percentage
		if sum.MonthlyGoal > 0 {
			d.Goal = formatAmount(sum.MonthlyGoal, cur)
		}
	}
	return d
}

func (s *Handler) campaignCurrency(ctx context.Context) string {
	if s.api == nil || s.campaignUUID == "" {
		return defaultCurrency
	}
	cmp, err := s.api.GetCampaignCached(ctx, s.campaignUUID)
	if err != nil {
		log.WithError(err).Warn("failed to get campaign")
		return defaultCurrency
	}
	if cmp == nil || cmp.Currency == "" {
		return defaultCurrency
	}
	return cmp.Currency
}

// formatAmount renders a minor-unit amount in major units with the ISO
// currency code, e.g. 123456 -> "USD 1,234.56".
func formatAmount(amount int64, code string) string {
	major := float64(amount) / 100
	unit, err := currency.ParseISO(code)
	if err != nil {
		return humanize.CommafWithDigits(major, 2)
	}
	return fmt.Sprintf("%v %s", unit, humanize.CommafWithDigits(major, 2))
}
