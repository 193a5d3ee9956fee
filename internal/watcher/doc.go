/*
Package watcher keeps a page's media classified as its DOM changes.

A Watcher subscribes to the document body, sweeps the media already present
and then reacts to each batch of mutation records in delivery order. All work
runs on one worker goroutine per Start, so analyses never overlap. Elements
are remembered in a weak set: an element is analyzed at most once for the
lifetime of the watcher, and remembering it never keeps it alive.

Images that are still loading are skipped until the document reports their
load. Videos and canvases are recorded but not analyzed.

Flagged elements receive the nsfw-content class plus data-nsfw-confidence and
data-nsfw-reason attributes for a stylesheet to act on.
*/
package watcher
