package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "valid uuid", id: uuid.NewString()},
		{name: "uppercase uuid", id: "6F9619FF-8B86-D011-B42D-00C04FC964FF"},
		{name: "empty", id: "", wantErr: true},
		{name: "not a uuid", id: "workspace-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID("workspace_id", tt.id)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidID)
				assert.Contains(t, err.Error(), "workspace_id")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateSourceType(t *testing.T) {
	assert.NoError(t, ValidateSourceType(SourceTypeFile))
	assert.NoError(t, ValidateSourceType(SourceTypeQNA))
	assert.NoError(t, ValidateSourceType(SourceTypeArticle))
	assert.ErrorIs(t, ValidateSourceType("LINK"), ErrInvalidSourceType)
}

func TestValidateText(t *testing.T) {
	assert.NoError(t, ValidateText("question", "How many vacation days?"))
	assert.ErrorIs(t, ValidateText("question", "  \n\t"), ErrEmptyContent)
}
