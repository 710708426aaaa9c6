/*
Copyright The Helm Authors.
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package release models a deployed instance of a pack: its status state
// machine, the rendered manifest and values captured at deploy time, and
// the annotations the lifecycle engine reads off rendered resources to
// drive sync waves and hook phases.
package release

import (
	"strconv"
	"time"

	"github.com/alegeay/Sherpack-sub001/pkg/pack"
)

// Status is a release's position in the install/upgrade/rollback/uninstall
// state machine. A release not yet installed is StatusUnknown; the zero
// value "" has no transitions.
type Status string

const (
	StatusUnknown          Status = "unknown"
	StatusPendingInstall   Status = "pending-install"
	StatusDeployed         Status = "deployed"
	StatusFailed           Status = "failed"
	StatusPendingUpgrade   Status = "pending-upgrade"
	StatusSuperseded       Status = "superseded"
	StatusPendingRollback  Status = "pending-rollback"
	StatusPendingUninstall Status = "pending-uninstall"
	StatusUninstalled      Status = "uninstalled"
)

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }

// IsPending reports whether s is one of the in-flight states that should
// be treated as stale after a timeout.
func (s Status) IsPending() bool {
	switch s {
	case StatusPendingInstall, StatusPendingUpgrade, StatusPendingRollback, StatusPendingUninstall:
		return true
	default:
		return false
	}
}

// transitions enumerates the state machine's allowed edges, keyed by the
// operation name that drives each one.
var transitions = map[Status]map[string]Status{
	StatusUnknown:          {"install": StatusPendingInstall},
	StatusPendingInstall:   {"success": StatusDeployed, "fail": StatusFailed},
	StatusDeployed:         {"upgrade": StatusPendingUpgrade, "rollback": StatusPendingRollback, "uninstall": StatusPendingUninstall},
	StatusPendingUpgrade:   {"success": StatusDeployed, "fail": StatusFailed},
	StatusFailed:           {"recover": StatusPendingInstall, "upgrade": StatusPendingUpgrade, "rollback": StatusPendingRollback},
	StatusPendingRollback:  {"success": StatusDeployed, "fail": StatusFailed},
	StatusPendingUninstall: {"success": StatusUninstalled, "fail": StatusFailed},
}

// CanTransition reports whether op is a legal transition out of from, and
// if so, the status it leads to.
func CanTransition(from Status, op string) (Status, bool) {
	edges, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := edges[op]
	return to, ok
}

// Info is release bookkeeping independent of any one revision: timestamps,
// a description, and stale-release recovery state.
type Info struct {
	FirstDeployed time.Time
	LastDeployed  time.Time
	Deleted       time.Time
	Description   string
	Recoverable   bool
	RecoveryCount int
}

// Release is a single revision of a deployed pack, the unit persisted by
// pkg/storage.
type Release struct {
	Name      string
	Namespace string
	Revision  int
	Status    Status
	Pack      *pack.Metadata
	Values    map[string]interface{}
	Manifest  string
	Hooks     []*Hook
	Info      *Info
}

// Labels returns the selector labels a storage driver persists this
// release under, independent of which backend (Secret, ConfigMap, SQL
// table) stores it.
func (r *Release) Labels() map[string]string {
	return map[string]string{
		"owner":     "sherpack",
		"name":      r.Name,
		"namespace": r.Namespace,
		"version":   strconv.Itoa(r.Revision),
		"status":    string(r.Status),
	}
}
