package server

import (
	"github.com/GriffinCanCode/blurguard/internal/analyzer"
	"github.com/GriffinCanCode/blurguard/internal/browser"
	"github.com/GriffinCanCode/blurguard/internal/exclusion"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/config"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/logging"
)

// NewClient builds the outbound HTTP client from the fetch settings
func NewClient(cfg *config.Config, logger *logging.Logger) *httpclient.Client {
	hc := httpclient.DefaultConfig()
	if cfg.Fetch.Timeout > 0 {
		hc.Timeout = cfg.Fetch.Timeout
	}
	hc.RetryMax = cfg.Fetch.RetryMax
	hc.RateLimit = cfg.Fetch.RateLimit
	if cfg.Fetch.UserAgent != "" {
		hc.UserAgent = cfg.Fetch.UserAgent
	}
	return httpclient.New(hc, logger)
}

// HostOptions maps configuration onto page host and analyzer options
func HostOptions(cfg *config.Config) browser.Options {
	opts := browser.DefaultOptions()
	opts.EnableScripts = cfg.Browser.EnableScripts
	if cfg.Browser.ScriptTimeout > 0 {
		opts.ScriptTimeout = cfg.Browser.ScriptTimeout
	}
	if cfg.Browser.LoadConcurrency > 0 {
		opts.LoadConcurrency = cfg.Browser.LoadConcurrency
	}
	opts.Analyzer = []analyzer.Option{
		analyzer.WithThreshold(cfg.Analyzer.Threshold),
		analyzer.WithCacheSize(cfg.Analyzer.CacheSize),
		analyzer.WithMinDimension(cfg.Analyzer.MinDimension),
		analyzer.WithMaxCanvasSide(cfg.Analyzer.MaxCanvasSide),
		analyzer.WithCORSTimeout(cfg.Analyzer.CORSTimeout),
	}
	return opts
}

// Exclusions builds the excluded-site list
func Exclusions(cfg *config.Config) *exclusion.List {
	return exclusion.NewList(cfg.Exclusion.Sites, cfg.Exclusion.ExcludeLocalhost)
}
