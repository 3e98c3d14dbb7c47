// Package adapterconfig loads and hot-reloads the keyed table of adapter
// profiles described in spec.md §6 ("Adapter configuration").
package adapterconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Transport names the adapter transport sub-mode (C2).
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportTCP   Transport = "tcp"
	TransportQUIC  Transport = "quic"
)

// SpawnStyle names the TCP sub-mode; meaningless for stdio/quic transports.
type SpawnStyle string

const (
	SpawnTCPListen  SpawnStyle = "tcp-listen"
	SpawnTCPPortArg SpawnStyle = "tcp-port-arg"
)

// Profile is one entry of the adapter table.
type Profile struct {
	Path       string     `json:"path"`
	Args       []string   `json:"args,omitempty"`
	Transport  Transport  `json:"transport"`
	SpawnStyle SpawnStyle `json:"spawn_style,omitempty"`
	// MinVersion, when set, is a semver constraint (e.g. ">=1.2.0") checked
	// against the adapter binary's self-reported version before spawn.
	MinVersion string `json:"min_version,omitempty"`
	// VersionArg is the flag passed to Path to print a version string,
	// defaulting to "--version".
	VersionArg string `json:"version_arg,omitempty"`
	// Addr is the dial address for the quic transport; meaningless for
	// stdio and tcp transports, which discover their own port.
	Addr string `json:"addr,omitempty"`
}

// DefaultProfileName is used when the client requests no adapter by name.
const DefaultProfileName = "lldb-dap"

func defaultTable() map[string]Profile {
	return map[string]Profile{
		DefaultProfileName: {
			Path:      "lldb-dap",
			Transport: TransportStdio,
		},
	}
}

// Table is the process-wide set of named adapter profiles, safe for
// concurrent read while a watcher reloads it in the background.
type Table struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewTable returns a table seeded with the built-in default profile.
func NewTable() *Table {
	return &Table{profiles: defaultTable()}
}

// LoadFile reads a JSON-encoded {name: Profile} map from path and replaces
// the table's contents, keeping the built-in default as a fallback for any
// name the file doesn't override.
func (t *Table) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("adapterconfig: read %s: %w", path, err)
	}

	var loaded map[string]Profile
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("adapterconfig: parse %s: %w", path, err)
	}

	merged := defaultTable()
	for name, p := range loaded {
		merged[name] = p
	}

	t.mu.Lock()
	t.profiles = merged
	t.mu.Unlock()

	return nil
}

// Resolve returns the profile for name, falling back to a PATH lookup by
// name for adapters not present in the table, per spec.md §6.
func (t *Table) Resolve(name string) (Profile, error) {
	if name == "" {
		name = DefaultProfileName
	}

	t.mu.RLock()
	p, ok := t.profiles[name]
	t.mu.RUnlock()

	if ok {
		return p, nil
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return Profile{}, &NotFoundError{Name: name}
	}

	return Profile{Path: path, Transport: TransportStdio}, nil
}

// NotFoundError reports an adapter name that is neither in the table nor on
// PATH.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("adapterconfig: adapter %q not found in config or PATH", e.Name)
}

// CheckVersion runs the profile's binary with its version flag and verifies
// the reported version satisfies MinVersion, if set. A profile with no
// MinVersion always passes.
func CheckVersion(p Profile) error {
	if p.MinVersion == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(p.MinVersion)
	if err != nil {
		return fmt.Errorf("adapterconfig: invalid min_version %q: %w", p.MinVersion, err)
	}

	versionArg := p.VersionArg
	if versionArg == "" {
		versionArg = "--version"
	}

	out, err := exec.Command(p.Path, versionArg).Output()
	if err != nil {
		return fmt.Errorf("adapterconfig: could not determine version of %s: %w", p.Path, err)
	}

	v, err := extractSemver(string(out))
	if err != nil {
		return fmt.Errorf("adapterconfig: could not parse version output of %s: %w", p.Path, err)
	}

	if !constraint.Check(v) {
		return fmt.Errorf("adapterconfig: %s version %s does not satisfy %s", p.Path, v, p.MinVersion)
	}

	return nil
}
