// Command blurguard scans a single page from the command line and prints the
// JSON report.
//
//	blurguard scan -url https://example.com/ -threshold 0.6 -html
//
// Configuration is read the same way as the server's.
package main
