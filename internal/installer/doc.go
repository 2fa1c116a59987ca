// Package installer wraps the external installer process.
//
// Every install and uninstall is one shell-out to the installer jar. The
// process's exit code and output are classified into a typed Outcome by a
// fixed pattern mapping, isolating that fragility here so the orchestration
// logic only ever sees typed results. No retries happen at this layer.
package installer
