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

package crd

import "fmt"

// SkippedChange is a Change the Cautious strategy declined to apply
// while still letting the rest of the upgrade through.
type SkippedChange struct {
	Path     string
	Reason   string
	Severity Severity
}

// Decision is a Strategy's verdict on whether to apply a CRD's changes.
type Decision struct {
	// Outcome is one of "apply", "apply-partial", "reject".
	Outcome  string
	Skipped  []SkippedChange
	Reason   string
	Blocking []string
}

// AllowsApply reports whether any part of the change set may be applied.
func (d Decision) AllowsApply() bool { return d.Outcome == "apply" || d.Outcome == "apply-partial" }

// IsRejected reports whether the upgrade is rejected outright.
func (d Decision) IsRejected() bool { return d.Outcome == "reject" }

func apply() Decision { return Decision{Outcome: "apply"} }

func applyPartial(skipped []SkippedChange) Decision {
	return Decision{Outcome: "apply-partial", Skipped: skipped}
}

func reject(reason string, blocking []string) Decision {
	return Decision{Outcome: "reject", Reason: reason, Blocking: blocking}
}

// Strategy decides whether a CRD's analyzed changes are safe enough to
// apply during an upgrade.
type Strategy interface {
	Decide(analysis Analysis) Decision
	Name() string
}

// SafeStrategy is the default: apply safe changes and warnings, reject the
// whole upgrade if any dangerous change is present. Overridden by passing
// ForceStrategy.
type SafeStrategy struct{}

func (SafeStrategy) Name() string { return "safe" }

func (SafeStrategy) Decide(analysis Analysis) Decision {
	if analysis.IsNew {
		return apply()
	}
	if !analysis.HasDangerousChanges() {
		return apply()
	}
	var blocking []string
	for _, c := range analysis.DangerousChanges() {
		blocking = append(blocking, c.Message)
	}
	return reject(
		fmt.Sprintf("%d dangerous change(s) detected; use a Force strategy to override", len(blocking)),
		blocking,
	)
}

// ForceStrategy applies every change regardless of severity.
type ForceStrategy struct{}

func (ForceStrategy) Name() string             { return "force" }
func (ForceStrategy) Decide(Analysis) Decision { return apply() }

// SkipStrategy never updates an existing CRD; used when CRDs are managed
// externally (GitOps, kubectl apply -f). A brand-new CRD is still rejected,
// since Skip means "don't touch CRDs at all", not "only touch new ones".
type SkipStrategy struct{}

func (SkipStrategy) Name() string { return "skip" }

func (SkipStrategy) Decide(analysis Analysis) Decision {
	if analysis.IsNew {
		return reject("CRD updates skipped", []string{"new CRD: " + analysis.Name})
	}
	return reject("CRD updates skipped", nil)
}

// CautiousStrategy applies only Safe changes, skipping Warning and
// Dangerous ones rather than rejecting the whole upgrade over them.
type CautiousStrategy struct{}

func (CautiousStrategy) Name() string { return "cautious" }

func (CautiousStrategy) Decide(analysis Analysis) Decision {
	if analysis.IsNew {
		return apply()
	}
	var skipped []SkippedChange
	for _, c := range analysis.Changes {
		if c.Severity() >= SeverityWarning {
			skipped = append(skipped, SkippedChange{Path: c.Path, Reason: c.Message, Severity: c.Severity()})
		}
	}
	if len(skipped) == 0 {
		return apply()
	}
	return applyPartial(skipped)
}

// CustomStrategy accepts any change at or below MaxAllowed, rejecting the
// upgrade if any change exceeds it.
type CustomStrategy struct {
	MaxAllowed Severity
}

func (s CustomStrategy) Name() string { return "custom" }

func (s CustomStrategy) Decide(analysis Analysis) Decision {
	if analysis.IsNew {
		return apply()
	}
	if analysis.MaxSeverity() <= s.MaxAllowed {
		return apply()
	}
	var blocking []string
	for _, c := range analysis.Changes {
		if c.Severity() > s.MaxAllowed {
			blocking = append(blocking, c.Message)
		}
	}
	return reject(fmt.Sprintf("changes exceed maximum allowed severity (%s)", s.MaxAllowed), blocking)
}

// StrategyFromOptions picks the strategy a CLI's --skip-crd-update/
// --force-crd-update flags select; safe is the default when neither is set.
func StrategyFromOptions(skipUpdate, forceUpdate bool) Strategy {
	switch {
	case skipUpdate:
		return SkipStrategy{}
	case forceUpdate:
		return ForceStrategy{}
	default:
		return SafeStrategy{}
	}
}
