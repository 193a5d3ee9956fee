// Package ws streams scan progress over WebSocket.
//
// A client opens GET /v1/scan/stream?url=<page> and receives one "mark" frame
// for every element the classifier flags, as soon as it is flagged, followed
// by a "complete" frame carrying the report or an "error" frame. Closing the
// connection cancels the scan.
package ws
