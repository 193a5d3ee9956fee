/*
Package dom provides the live document model the classifier runs against.

# Overview

A Document is a tree of *Element values whose pointer identity is stable for the
lifetime of the page. Structural changes (insert, move, remove) and resource load
completions are buffered as MutationRecords and delivered in batches when the host
calls Flush, the way a browser delivers MutationObserver callbacks at a microtask
checkpoint.

# Observing

	obs, err := doc.Observe(doc.Body(), dom.ObserveOptions{Subtree: true, Load: true},
		func(records []dom.MutationRecord) {
			for _, rec := range records {
				// rec.AddedNodes ...
			}
		})
	defer obs.Disconnect()

Callbacks run on the goroutine that calls Flush and never overlap for a single
Flush call. Records are only buffered while at least one observer is connected.

# Selectors

QuerySelectorAll supports comma separated compound selectors built from a tag,
#id, .class and [attr] / [attr=value] parts. Combinators are not supported.
*/
package dom
