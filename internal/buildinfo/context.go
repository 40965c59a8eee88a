// Package buildinfo holds build-time metadata injected with -ldflags.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not set at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	Commit string
}

// NewContext returns build metadata, usually from main's ldflags variables.
func NewContext(version, buildDate, commit string) *Context {
	return &Context{Version: version, BuildDate: buildDate, Commit: commit}
}

func orUnknown(v string) string {
	if v == "" {
		return UnknownValue
	}
	return v
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.Version)
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.BuildDate)
}

// GetCommit returns the commit or UnknownValue.
func (c *Context) GetCommit() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.Commit)
}

// Release is the release name reported to error telemetry, e.g. "birdo@1.2.0".
func (c *Context) Release() string {
	return "birdo@" + c.GetVersion()
}

// UserAgent is sent with outbound requests, e.g. "Birdo/1.2.0".
func (c *Context) UserAgent() string {
	return "Birdo/" + c.GetVersion()
}

func (c *Context) String() string {
	return fmt.Sprintf("birdo %s (commit %s, built %s)", c.GetVersion(), c.GetCommit(), c.GetBuildDate())
}
