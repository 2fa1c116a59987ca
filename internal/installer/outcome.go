package installer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Status classifies the result of one installer invocation.
type Status int

const (
	// StatusOK indicates the operation completed.
	StatusOK Status = iota

	// StatusAlreadyInstalled indicates the package was present before the
	// install ran. The memory baseline was captured with it on the card,
	// so the package must be removed and installed again before a probe
	// can say anything about its footprint.
	StatusAlreadyInstalled

	// StatusReaderBusy indicates another process held the reader.
	StatusReaderBusy

	// StatusTimeout indicates the installer gave up waiting on the card.
	// The card state is unknown; the session must be treated as faulted.
	StatusTimeout

	// StatusFailed indicates any other failure.
	StatusFailed
)

// String returns a human-readable description of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAlreadyInstalled:
		return "already installed"
	case StatusReaderBusy:
		return "reader busy"
	case StatusTimeout:
		return "timeout"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the typed result of one install or uninstall.
type Outcome struct {
	// Status classifies the result.
	Status Status

	// ExistingVersion is the version already on the card when Status is
	// StatusAlreadyInstalled and the installer reported one.
	ExistingVersion string

	// Reason carries the installer's own words for failures.
	Reason string

	// Elapsed is how long the invocation took.
	Elapsed time.Duration
}

// Output patterns recognized by the classifier. The installer's messages are
// its public CLI surface; these patterns are pinned by its documentation.
var (
	alreadyInstalledRe = regexp.MustCompile(`(?i)already\s+installed(?:\s+\(version\s+([^)]+)\))?`)
	notPresentRe       = regexp.MustCompile(`(?i)not\s+(?:installed|present|found\s+on\s+card)`)
	readerBusyRe       = regexp.MustCompile(`(?i)sharing\s+violation|reader\s+(?:is\s+)?busy|SCARD_E_SHARING_VIOLATION`)
	timeoutRe          = regexp.MustCompile(`(?i)tim(?:ed?\s*)?out|card\s+removed|SCARD_W_REMOVED_CARD`)
)

// ClassifyInstall maps an install invocation result onto an Outcome.
// Exit 0 is success; recognized output patterns refine nonzero exits, and
// anything unrecognized is a plain failure.
func ClassifyInstall(res Result) Outcome {
	out := Outcome{Elapsed: res.Elapsed}
	combined := res.Stdout + "\n" + res.Stderr

	if m := alreadyInstalledRe.FindStringSubmatch(combined); m != nil {
		out.Status = StatusAlreadyInstalled
		if len(m) > 1 {
			out.ExistingVersion = strings.TrimSpace(m[1])
		}
		return out
	}

	if res.ExitCode == 0 {
		out.Status = StatusOK
		return out
	}

	switch {
	case readerBusyRe.MatchString(combined):
		out.Status = StatusReaderBusy
	case timeoutRe.MatchString(combined):
		out.Status = StatusTimeout
	default:
		out.Status = StatusFailed
	}
	out.Reason = failureReason(res)
	return out
}

// ClassifyUninstall maps an uninstall invocation result onto an Outcome.
// Removing a package that is not on the card counts as success, keeping
// uninstall idempotent end to end.
func ClassifyUninstall(res Result) Outcome {
	out := Outcome{Elapsed: res.Elapsed}
	combined := res.Stdout + "\n" + res.Stderr

	if res.ExitCode == 0 || notPresentRe.MatchString(combined) {
		out.Status = StatusOK
		return out
	}

	switch {
	case readerBusyRe.MatchString(combined):
		out.Status = StatusReaderBusy
	case timeoutRe.MatchString(combined):
		out.Status = StatusTimeout
	default:
		out.Status = StatusFailed
	}
	out.Reason = failureReason(res)
	return out
}

// failureReason extracts a one-line diagnostic from a failed invocation.
func failureReason(res Result) string {
	for _, chunk := range []string{res.Stderr, res.Stdout} {
		for _, line := range strings.Split(chunk, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				return line
			}
		}
	}
	return "exit code " + strconv.Itoa(res.ExitCode)
}
