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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeAnalysis(changes ...Change) Analysis {
	return Analysis{Name: "test.example.com", Changes: changes}
}

func TestSafeStrategyAllowsSafeChangesAndWarnings(t *testing.T) {
	analysis := makeAnalysis(
		Change{Kind: ChangeAddOptionalField, severity: SeveritySafe},
		Change{Kind: ChangeTightenValidation, severity: SeverityWarning},
	)
	decision := SafeStrategy{}.Decide(analysis)
	assert.True(t, decision.AllowsApply())
	assert.False(t, decision.IsRejected())
}

func TestSafeStrategyRejectsDangerous(t *testing.T) {
	analysis := makeAnalysis(
		Change{Kind: ChangeAddOptionalField, Message: "safe", severity: SeveritySafe},
		Change{Kind: ChangeRemoveVersion, Message: "dangerous", severity: SeverityDangerous},
	)
	decision := SafeStrategy{}.Decide(analysis)
	assert.True(t, decision.IsRejected())
	assert.Equal(t, []string{"dangerous"}, decision.Blocking)
}

func TestForceStrategyAllowsEverything(t *testing.T) {
	analysis := makeAnalysis(
		Change{Kind: ChangeRemoveVersion, severity: SeverityDangerous},
		Change{Kind: ChangeScope, severity: SeverityDangerous},
	)
	decision := ForceStrategy{}.Decide(analysis)
	assert.True(t, decision.AllowsApply())
}

func TestSkipStrategyRejectsEverything(t *testing.T) {
	analysis := makeAnalysis(Change{Kind: ChangeAddOptionalField, severity: SeveritySafe})
	decision := SkipStrategy{}.Decide(analysis)
	assert.True(t, decision.IsRejected())
}

func TestCautiousStrategySkipsWarnings(t *testing.T) {
	analysis := makeAnalysis(
		Change{Kind: ChangeAddOptionalField, severity: SeveritySafe},
		Change{Kind: ChangeTightenValidation, Path: "spec.size", Message: "tightened", severity: SeverityWarning},
	)
	decision := CautiousStrategy{}.Decide(analysis)
	if assert.Equal(t, "apply-partial", decision.Outcome) {
		assert.Len(t, decision.Skipped, 1)
		assert.Equal(t, SeverityWarning, decision.Skipped[0].Severity)
	}
}

func TestNewCRDAlwaysApplies(t *testing.T) {
	analysis := NewCRDAnalysis("test.example.com")
	assert.True(t, SafeStrategy{}.Decide(analysis).AllowsApply())
	assert.True(t, ForceStrategy{}.Decide(analysis).AllowsApply())
	assert.True(t, CautiousStrategy{}.Decide(analysis).AllowsApply())
}

func TestStrategyFromOptions(t *testing.T) {
	assert.Equal(t, "skip", StrategyFromOptions(true, false).Name())
	assert.Equal(t, "force", StrategyFromOptions(false, true).Name())
	assert.Equal(t, "safe", StrategyFromOptions(false, false).Name())
}

func TestCustomStrategyRespectsMaxSeverity(t *testing.T) {
	analysis := makeAnalysis(
		Change{Kind: ChangeTightenValidation, severity: SeverityWarning},
		Change{Kind: ChangeRemoveVersion, severity: SeverityDangerous},
	)

	strict := CustomStrategy{MaxAllowed: SeverityWarning}
	assert.True(t, strict.Decide(analysis).IsRejected())

	lenient := CustomStrategy{MaxAllowed: SeverityDangerous}
	assert.True(t, lenient.Decide(analysis).AllowsApply())
}
