// Package capture connects the capture pipeline to the registration client.
//
// The Watcher observes a captures directory; when the AI worker drops a new
// evidence file (and its JSON metadata sidecar) the file is fingerprinted
// and submitted for registration after a short settle delay, so partially
// written captures are never fingerprinted mid-write.
package capture
