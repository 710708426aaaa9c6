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

// Severity classifies a Change by upgrade risk.
type Severity int

const (
	SeveritySafe Severity = iota
	SeverityWarning
	SeverityDangerous
)

func (s Severity) String() string {
	switch s {
	case SeveritySafe:
		return "safe"
	case SeverityWarning:
		return "warning"
	case SeverityDangerous:
		return "dangerous"
	default:
		return "unknown"
	}
}

// ChangeKind enumerates the specific kinds of change the analyzer detects
// between two versions of a CRD.
type ChangeKind int

const (
	ChangeScope ChangeKind = iota
	ChangeAddVersion
	ChangeRemoveVersion
	ChangeDeprecateVersion
	ChangeStorageVersion
	ChangeAddOptionalField
	ChangeAddRequiredField
	ChangeRemoveField
	ChangeFieldType
	ChangeDefault
	ChangeTightenValidation
	ChangeAddPrinterColumn
	ChangeRemovePrinterColumn
	ChangeSubresource
)

// severity returns this kind's intrinsic severity absent any special-casing
// (ChangeFieldType's int-to-number widening is handled by the caller, which
// has the old/new types Change doesn't carry).
func (k ChangeKind) severity() Severity {
	switch k {
	case ChangeAddVersion, ChangeDeprecateVersion, ChangeAddOptionalField,
		ChangeAddPrinterColumn:
		return SeveritySafe
	case ChangeAddRequiredField, ChangeDefault, ChangeTightenValidation:
		return SeverityWarning
	case ChangeScope, ChangeRemoveVersion, ChangeStorageVersion,
		ChangeRemoveField, ChangeFieldType, ChangeRemovePrinterColumn,
		ChangeSubresource:
		return SeverityDangerous
	default:
		return SeverityDangerous
	}
}

// Change is a single detected difference between two CRD schema versions.
type Change struct {
	Kind     ChangeKind
	Path     string
	Message  string
	severity Severity
}

// Severity returns the change's classified risk, honoring any override the
// analyzer applied (e.g. integer-to-number widening downgraded from
// dangerous to safe).
func (c Change) Severity() Severity { return c.severity }

// Analysis is the full set of changes detected for one CRD between an old
// (possibly absent) and new definition.
type Analysis struct {
	Name    string
	IsNew   bool
	Changes []Change
}

// NewCRDAnalysis builds the trivial analysis for a CRD with no prior
// revision: always safe to apply.
func NewCRDAnalysis(name string) Analysis {
	return Analysis{Name: name, IsNew: true}
}

// HasDangerousChanges reports whether any recorded change is Dangerous.
func (a Analysis) HasDangerousChanges() bool {
	for _, c := range a.Changes {
		if c.Severity() == SeverityDangerous {
			return true
		}
	}
	return false
}

// DangerousChanges returns the subset of Changes classified Dangerous.
func (a Analysis) DangerousChanges() []Change {
	return a.changesAtOrAbove(SeverityDangerous)
}

// WarningChanges returns changes classified exactly Warning.
func (a Analysis) WarningChanges() []Change {
	var out []Change
	for _, c := range a.Changes {
		if c.Severity() == SeverityWarning {
			out = append(out, c)
		}
	}
	return out
}

func (a Analysis) changesAtOrAbove(min Severity) []Change {
	var out []Change
	for _, c := range a.Changes {
		if c.Severity() >= min {
			out = append(out, c)
		}
	}
	return out
}

// MaxSeverity returns the highest severity among a's changes, or Safe if
// there are none.
func (a Analysis) MaxSeverity() Severity {
	max := SeveritySafe
	for _, c := range a.Changes {
		if c.Severity() > max {
			max = c.Severity()
		}
	}
	return max
}

// Analyze compares old against new and classifies every difference. A nil
// old produces Analysis{IsNew: true} with no changes recorded, since nothing
// has a prior revision to diverge from.
func Analyze(old, new *Definition) Analysis {
	if old == nil {
		return NewCRDAnalysis(new.Name)
	}

	a := Analysis{Name: new.Name}

	if old.Scope != new.Scope {
		a.Changes = append(a.Changes, Change{
			Kind: ChangeScope, Path: "spec.scope",
			Message:  fmt.Sprintf("scope changed from %s to %s", old.Scope, new.Scope),
			severity: SeverityDangerous,
		})
	}

	a.Changes = append(a.Changes, diffVersions(old, new)...)
	return a
}

func diffVersions(old, new *Definition) []Change {
	var changes []Change

	oldStorage := old.StorageVersion()
	newStorage := new.StorageVersion()
	if oldStorage != nil && newStorage != nil && oldStorage.Name != newStorage.Name {
		changes = append(changes, Change{
			Kind: ChangeStorageVersion, Path: "spec.versions[].storage",
			Message:  fmt.Sprintf("storage version changed from %s to %s", oldStorage.Name, newStorage.Name),
			severity: SeverityDangerous,
		})
	}

	for _, nv := range new.Versions {
		ov := old.Version(nv.Name)
		if ov == nil {
			changes = append(changes, Change{
				Kind: ChangeAddVersion, Path: "spec.versions." + nv.Name,
				Message:  fmt.Sprintf("added version %s", nv.Name),
				severity: SeveritySafe,
			})
			continue
		}
		if nv.Deprecated && !ov.Deprecated {
			changes = append(changes, Change{
				Kind: ChangeDeprecateVersion, Path: "spec.versions." + nv.Name,
				Message:  fmt.Sprintf("version %s marked deprecated", nv.Name),
				severity: SeveritySafe,
			})
		}
		changes = append(changes, diffSchema(nv.Name+".spec", ov.SpecSchema(), nv.SpecSchema())...)
		changes = append(changes, diffPrinterColumns(nv.Name, ov.PrinterColumns, nv.PrinterColumns)...)
		changes = append(changes, diffSubresources(nv.Name, ov.Subresources, nv.Subresources)...)
	}

	for _, ov := range old.Versions {
		if new.Version(ov.Name) == nil {
			changes = append(changes, Change{
				Kind: ChangeRemoveVersion, Path: "spec.versions." + ov.Name,
				Message:  fmt.Sprintf("removed version %s", ov.Name),
				severity: SeverityDangerous,
			})
		}
	}

	return changes
}

func diffSchema(path string, old, new *Property) []Change {
	if old == nil && new == nil {
		return nil
	}
	if old == nil {
		return []Change{{
			Kind: ChangeAddOptionalField, Path: path,
			Message:  fmt.Sprintf("%s added", path),
			severity: SeveritySafe,
		}}
	}
	if new == nil {
		return []Change{{
			Kind: ChangeRemoveField, Path: path,
			Message:  fmt.Sprintf("%s removed", path),
			severity: SeverityDangerous,
		}}
	}

	var changes []Change

	if !old.Type.IsCompatibleWith(new.Type) {
		changes = append(changes, Change{
			Kind: ChangeFieldType, Path: path,
			Message:  fmt.Sprintf("%s type changed from %s to %s", path, old.Type, new.Type),
			severity: SeverityDangerous,
		})
	} else if old.Type == TypeInteger && new.Type == TypeNumber {
		changes = append(changes, Change{
			Kind: ChangeFieldType, Path: path,
			Message:  fmt.Sprintf("%s widened from integer to number", path),
			severity: SeveritySafe,
		})
	}

	if new.HasDefault && (!old.HasDefault || !equalValue(old.Default, new.Default)) {
		changes = append(changes, Change{
			Kind: ChangeDefault, Path: path,
			Message:  fmt.Sprintf("%s default changed", path),
			severity: SeverityWarning,
		})
	}

	if tightened := tightenedValidation(old, new); tightened != "" {
		changes = append(changes, Change{
			Kind: ChangeTightenValidation, Path: path,
			Message:  fmt.Sprintf("%s: %s", path, tightened),
			severity: SeverityWarning,
		})
	}

	for name, newChild := range new.Properties {
		oldChild := old.Get(name)
		childPath := path + "." + name
		if oldChild == nil {
			kind, sev := ChangeAddOptionalField, SeveritySafe
			msg := fmt.Sprintf("%s added", childPath)
			if new.IsRequired(name) {
				kind, sev = ChangeAddRequiredField, SeverityWarning
				msg = fmt.Sprintf("%s added as required", childPath)
			}
			changes = append(changes, Change{Kind: kind, Path: childPath, Message: msg, severity: sev})
			continue
		}
		changes = append(changes, diffSchema(childPath, oldChild, newChild)...)
	}
	for name := range old.Properties {
		if new.Get(name) == nil {
			changes = append(changes, Change{
				Kind: ChangeRemoveField, Path: path + "." + name,
				Message:  fmt.Sprintf("%s.%s removed", path, name),
				severity: SeverityDangerous,
			})
		}
	}

	return changes
}

// tightenedValidation reports, as a human-readable reason, any narrowing of
// the accepted value space new introduces over old.
func tightenedValidation(old, new *Property) string {
	if new.Pattern != "" && new.Pattern != old.Pattern {
		return "pattern added or changed"
	}
	if len(new.Enum) > 0 && len(old.Enum) == 0 {
		return "enum constraint added"
	}
	if len(new.Enum) > 0 {
		for _, ov := range old.Enum {
			kept := false
			for _, nv := range new.Enum {
				if equalValue(ov, nv) {
					kept = true
					break
				}
			}
			if !kept {
				return "enum narrowed"
			}
		}
	}
	if new.Minimum != nil && (old.Minimum == nil || *new.Minimum > *old.Minimum) {
		return "minimum raised"
	}
	if new.Maximum != nil && (old.Maximum == nil || *new.Maximum < *old.Maximum) {
		return "maximum lowered"
	}
	if new.MaxLength != nil && (old.MaxLength == nil || *new.MaxLength < *old.MaxLength) {
		return "maxLength lowered"
	}
	if new.MinLength != nil && (old.MinLength == nil || *new.MinLength > *old.MinLength) {
		return "minLength raised"
	}
	return ""
}

func equalValue(a, b interface{}) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func diffPrinterColumns(version string, old, new []PrinterColumn) []Change {
	var changes []Change
	index := func(cols []PrinterColumn, name string) int {
		for i, c := range cols {
			if c.Name == name {
				return i
			}
		}
		return -1
	}
	for _, c := range new {
		if index(old, c.Name) == -1 {
			changes = append(changes, Change{
				Kind: ChangeAddPrinterColumn, Path: "spec.versions." + version + ".additionalPrinterColumns." + c.Name,
				Message:  fmt.Sprintf("printer column %s added", c.Name),
				severity: SeveritySafe,
			})
		}
	}
	for _, c := range old {
		if index(new, c.Name) == -1 {
			changes = append(changes, Change{
				Kind: ChangeRemovePrinterColumn, Path: "spec.versions." + version + ".additionalPrinterColumns." + c.Name,
				Message:  fmt.Sprintf("printer column %s removed", c.Name),
				severity: SeverityDangerous,
			})
		}
	}
	return changes
}

func diffSubresources(version string, old, new Subresources) []Change {
	var changes []Change
	if old.Status && !new.Status {
		changes = append(changes, Change{
			Kind: ChangeSubresource, Path: "spec.versions." + version + ".subresources.status",
			Message:  "status subresource removed",
			severity: SeverityDangerous,
		})
	}
	if old.Scale && !new.Scale {
		changes = append(changes, Change{
			Kind: ChangeSubresource, Path: "spec.versions." + version + ".subresources.scale",
			Message:  "scale subresource removed",
			severity: SeverityDangerous,
		})
	}
	return changes
}
