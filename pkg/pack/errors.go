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

package pack

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMissingMetadata indicates that Pack.yaml is missing.
var ErrMissingMetadata = errors.New("validation: pack.metadata (Pack.yaml) is required")

// ErrMissingAPIVersion indicates that apiVersion is missing in Pack.yaml.
var ErrMissingAPIVersion = errors.New("validation: pack.metadata.apiVersion is required in Pack.yaml")

// ErrMissingName indicates that the pack name is missing in Pack.yaml.
var ErrMissingName = errors.New("validation: pack.metadata.name is required in Pack.yaml")

// ErrMissingVersion indicates that the pack version is missing in Pack.yaml.
var ErrMissingVersion = errors.New("validation: pack.metadata.version is required in Pack.yaml")

// ErrInvalidVersion indicates the version string is not valid SemVer 2.
var ErrInvalidVersion = errors.New("validation: pack.metadata.version must be valid SemVer 2")

// ErrInvalidKind indicates that kind is neither application nor library.
var ErrInvalidKind = errors.New("validation: pack.kind must be 'application' or 'library'")

// ValidationError represents an error encountered while validating pack metadata.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

// ValidationErrorf formats a ValidationError.
func ValidationErrorf(format string, args ...interface{}) ValidationError {
	return ValidationError(fmt.Sprintf(format, args...))
}
