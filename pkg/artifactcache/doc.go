// Package artifactcache remembers the artifacts of the latest run of each workflow.
//
// Entries expire after a fixed validity window. Expired entries are pruned lazily, on the next
// lookup of any workflow, so there is no background timer. A failed resolution is never cached and
// the next lookup will ask the upstream directory again.
package artifactcache
