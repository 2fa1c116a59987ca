// Package catalog enumerates the (package, version, artifact) tuples a
// measurement run considers.
//
// Two sources exist: StoreSource walks a package store API that lists apps
// and their published versions, and ReleaseSource walks the releases of a
// set of repositories, treating each CAP asset as one package and the
// release tag as its version. Both yield entries in the remote source's
// order; a listing is finite and re-invoking it starts over.
//
// Artifacts are fetched lazily, after the orchestrator has decided an entry
// actually needs measuring, so cached entries cost no downloads.
package catalog
