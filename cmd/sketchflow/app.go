package main

import (
	"context"
	"net/http"
	"time"

	"github.com/fpang/sketchflow/internal/adslot"
	"github.com/fpang/sketchflow/internal/auth"
	"github.com/fpang/sketchflow/internal/awsboot"
	"github.com/fpang/sketchflow/internal/capability"
	"github.com/fpang/sketchflow/internal/cli"
	"github.com/fpang/sketchflow/internal/config"
	"github.com/fpang/sketchflow/internal/conversion"
	"github.com/fpang/sketchflow/internal/export"
	"github.com/fpang/sketchflow/internal/logging"
	"github.com/fpang/sketchflow/internal/redirect"
	"github.com/fpang/sketchflow/internal/render"
	"github.com/rs/zerolog/log"
)

// app is the explicitly constructed context every command runs with. It is
// built once per process and torn down by close.
type app struct {
	cfg      *config.Config
	aws      *awsboot.Clients
	tabID    string
	auth     auth.Provider
	store    redirect.Store
	caps     capability.Set
	client   *conversion.Client
	exporter *export.Exporter
	ads      adslot.Gate
	http     *http.Client

	closers []func() error
}

func newApp(ctx context.Context, command string) *app {
	start := time.Now()
	a := &app{aws: awsboot.New(), tabID: redirect.NewTabID()}

	a.cfg = cli.InitConfig(ctx, a.aws)
	if apiBaseFlag != "" {
		a.cfg.APIBase = apiBaseFlag
	}

	a.auth = auth.New(a.cfg)
	a.caps = capability.Probe(a.cfg.MMDCBin)
	a.client = conversion.NewClient(a.cfg.APIBase)
	a.http = &http.Client{Timeout: 30 * time.Second}
	a.ads = adslot.Gate{Enabled: a.cfg.AdsEnabled, Consent: a.cfg.AdsConsent}
	a.exporter = &export.Exporter{S3: func(ctx context.Context) (export.ObjectPutter, error) {
		client, err := a.aws.S3(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	}}

	a.store = redirect.NewMemoryStore()
	if a.cfg.RedirectRedisURL != "" {
		rs, err := redirect.NewRedisStore(ctx, a.cfg.RedirectRedisURL, a.tabID)
		if err != nil {
			log.Warn().Err(err).Msg("Redis redirect store unavailable, using in-memory store")
		} else {
			a.store = rs
			a.closers = append(a.closers, rs.Close)
		}
	}

	logging.NewStartupLogger(command).
		Version(version).
		Tab(a.tabID).
		Endpoint("api", a.cfg.APIBase).
		Endpoint("identity", a.cfg.SupabaseURL).
		Endpoint("plantuml", a.cfg.PlantUMLServer).
		Endpoint("mermaidRender", a.cfg.MermaidRender).
		Endpoint("drawioViewer", a.cfg.DrawioViewerURL).
		Feature("auth", a.cfg.AuthConfigured()).
		Feature("ads", a.ads.Allowed()).
		Feature("localMermaid", a.caps.LocalMermaid.OK()).
		Feature("filePicker", a.caps.FilePicker.OK()).
		Feature("redisRedirectStore", len(a.closers) > 0).
		Config("convertTimeout", a.cfg.ConvertTimeout.String()).
		Config("callback", a.cfg.CallbackURL()).
		InitDuration(time.Since(start)).
		Log()

	return a
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Debug().Err(err).Msg("Close failed")
		}
	}
}

func (a *app) controller(timeout time.Duration) *conversion.Controller {
	if timeout <= 0 {
		timeout = a.cfg.ConvertTimeout
	}
	return conversion.NewController(a.client,
		conversion.WithTokenSource(a.auth),
		conversion.WithTimeout(timeout),
	)
}

func (a *app) renderDeps() render.Deps {
	return render.Deps{
		HTTPClient:      a.http,
		PlantUMLServer:  a.cfg.PlantUMLServer,
		DrawioViewerURL: a.cfg.DrawioViewerURL,
		DrawioEditorURL: a.cfg.DrawioEditorURL,
		MermaidLoader: render.MermaidLoader(
			a.caps.LocalMermaid.OK(), a.caps.MMDCPath, a.cfg.MMDCTimeout, a.cfg.MermaidRender, a.http,
		),
	}
}
