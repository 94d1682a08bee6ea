// Anchor is an evidence integrity ledger for captured media.
//
// It computes tamper-evident fingerprints for evidence files, anchors them
// in an append-only ledger, and keeps capture pipelines running through
// ledger outages with a durable local fallback store and background
// reconciliation.
//
// Usage:
//
//	# Start the ledger service with default configuration
//	anchor run
//
//	# Start with a custom configuration file
//	anchor run --config /path/to/anchor.yaml
//
//	# Register an evidence file
//	anchor submit --file capture.jpg --camera 12 --incident 7 --registrant unit-42
//
//	# Verify a fingerprint
//	anchor verify 3a7bd3e2360a3d29eea436fcfb7e44c735d117c42d1c1835420b6b9942dd4f1b
//
//	# List records awaiting reconciliation
//	anchor pending
//
//	# Show version information
//	anchor version
package main

func main() {
	Execute()
}
