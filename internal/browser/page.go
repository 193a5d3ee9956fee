package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/blurguard/internal/analyzer"
	"github.com/GriffinCanCode/blurguard/internal/dom"
	"github.com/GriffinCanCode/blurguard/internal/watcher"
	"go.uber.org/zap"
)

// Page is one loaded document
type Page struct {
	doc     *dom.Document
	host    *Host
	title   string
	scripts []string

	inject     sync.Once
	classifier *Classifier
}

// Classifier is the analyzer and watcher injected into a page
type Classifier struct {
	Analyzer *analyzer.Analyzer
	Watcher  *watcher.Watcher
}

// Document returns the live document
func (p *Page) Document() *dom.Document {
	return p.doc
}

// URL returns the page URL after redirects
func (p *Page) URL() string {
	return p.doc.URL()
}

// Title returns the page title
func (p *Page) Title() string {
	return p.title
}

// Scripts returns the inline scripts found in the page
func (p *Page) Scripts() []string {
	return append([]string(nil), p.scripts...)
}

// InjectClassifier builds the page's classifier on first use. Later calls
// return the same instance with alreadyLoaded set.
func (p *Page) InjectClassifier() (c *Classifier, alreadyLoaded bool) {
	alreadyLoaded = true
	p.inject.Do(func() {
		alreadyLoaded = false
		opts := append([]analyzer.Option{
			analyzer.WithFetcher(p.host.client),
			analyzer.WithLogger(p.host.log),
			analyzer.WithMetrics(p.host.metrics),
		}, p.host.opts.Analyzer...)

		a := analyzer.New(opts...)
		p.classifier = &Classifier{
			Analyzer: a,
			Watcher:  watcher.New(p.doc, a, p.host.log, p.host.metrics),
		}
	})
	if alreadyLoaded {
		p.host.log.Debug("Classifier already loaded", zap.String("url", p.doc.URL()))
	}
	return p.classifier, alreadyLoaded
}

// RunScripts executes the page's inline scripts in order in one sandbox.
// Script failures are logged and returned joined; the page stays usable.
func (p *Page) RunScripts(ctx context.Context) error {
	if p.host.pool == nil || len(p.scripts) == 0 {
		return nil
	}

	results, err := p.host.pool.ExecuteAll(ctx, p.scripts, p.doc)
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, entry := range res.Console {
			p.host.log.Debug("Page console",
				zap.String("level", entry.Level),
				zap.String("message", entry.Message))
		}
	}
	if err != nil {
		p.host.log.Warn("Page script failed", zap.String("url", p.doc.URL()), zap.Error(err))
		return fmt.Errorf("page scripts: %w", err)
	}
	return nil
}
