/*
Package browser hosts pages for the classifier.

A Host fetches a page, decodes it to UTF-8, strips it down with a sanitizing
policy and parses what is left into a live dom.Document. Inline scripts are
pulled out before sanitizing and run later in a goja sandbox against the same
document, so script-inserted images reach the watcher through ordinary
mutation records.

	host, _ := browser.NewHost(client, browser.DefaultOptions(), log, metrics)
	page, _ := host.Open(ctx, "https://example.com/")
	c, _ := page.InjectClassifier()
	_ = c.Watcher.Start()
	_, _ = page.LoadResources(ctx)
	_ = page.RunScripts(ctx)

Images fetched from another origin are attached as not origin-clean, which
taints any canvas they are drawn into.
*/
package browser
