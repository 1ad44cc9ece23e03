// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidateID checks that id is a UUID string. Workspace, source and
// session identifiers all go through here before any pipeline work starts.
func ValidateID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s %q", ErrInvalidID, field, id)
	}
	return nil
}

// ValidateSourceType validates that a SourceType has a known value.
func ValidateSourceType(t SourceType) error {
	switch t {
	case SourceTypeFile, SourceTypeQNA, SourceTypeArticle:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSourceType, string(t))
}

// ValidateText rejects empty or whitespace-only text.
func ValidateText(field, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyContent, field)
	}
	return nil
}
