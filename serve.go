package main

import (
	"net/http"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"

	"github.com/DKMKC/hub-ui/handlers/ticker"
	"github.com/DKMKC/hub-ui/services/common"
	"github.com/DKMKC/hub-ui/services/raisely"
	sess "github.com/DKMKC/hub-ui/services/session"
	"github.com/DKMKC/hub-ui/services/sponsorship"
	w "github.com/DKMKC/hub-ui/services/web"
)

func makeServeCMD() cli.Command {
	serveCMD := cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Serves web server",
		Action:  serve,
	}
	configureServe(&serveCMD)
	return serveCMD
}

func configureServe(c *cli.Command) {
	c.Flags = cs.RegisterProbeFlags(c.Flags)
	c.Flags = cs.RegisterPprofFlags(c.Flags)
	c.Flags = w.RegisterFlags(c.Flags)
	c.Flags = common.RegisterFlags(c.Flags)
	c.Flags = raisely.RegisterFlags(c.Flags)
}

func serve(c *cli.Context) error {
	// Setting HTTP Client
	cl := http.DefaultClient

	// Setting template renderer
	re := multitemplate.NewRenderer()
	re.AddFromFiles("ticker", "templates/layouts/main.html", "templates/ticker/index.html")
	re.AddFromFiles("ticker_embed", "templates/layouts/main.html", "templates/ticker/embed.html")

	var servers []cs.Servable

	// Setting Probe
	probe := cs.NewProbe(c)
	if probe != nil {
		servers = append(servers, probe)
		defer probe.Close()
	}

	// Setting Pprof
	pprof := cs.NewPprof(c)
	if pprof != nil {
		servers = append(servers, pprof)
		defer pprof.Close()
	}

	// Setting Gin
	r := gin.Default()
	r.RedirectTrailingSlash = false
	r.HTMLRender = re

	// Setting Web
	web := w.New(c, r)
	servers = append(servers, web)
	defer web.Close()

	// Setting Session
	err := sess.RegisterHandler(c, r)
	if err != nil {
		return err
	}

	// Setting Raisely API
	rapi := raisely.New(c, cl)
	if rapi == nil {
		return errors.New("raisely api is not configured (missing RAISELY_API_HOST)")
	}

	// Setting SponsorshipAggregator
	agg := sponsorship.New(rapi)

	// Setting TickerHandler
	ticker.RegisterHandler(c, r, rapi, agg)

	// Setting Serve
	serve := cs.NewServe(servers...)

	// And SERVE!
	err = serve.Serve()
	if err != nil {
		log.WithError(err).Error("got server error")
	}
	return err
}
