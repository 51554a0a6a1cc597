package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parkingRequest struct {
	Address     *string `json:"address" validate:"required"`
	CountPlaces *int    `json:"count_places" validate:"required"`
	Opened      *bool   `json:"opened"`
}

func TestRequired(t *testing.T) {
	address := "str. Lenina, 3"
	zero := 0

	tests := []struct {
		name        string
		req         parkingRequest
		wantMissing []string
	}{
		{
			name: "all present",
			req:  parkingRequest{Address: &address, CountPlaces: &zero},
		},
		{
			name:        "address missing",
			req:         parkingRequest{CountPlaces: &zero},
			wantMissing: []string{"address"},
		},
		{
			name:        "everything missing",
			req:         parkingRequest{},
			wantMissing: []string{"address", "count_places"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Required(&tt.req)
			if tt.wantMissing == nil {
				require.NoError(t, err)
				return
			}

			var mfe *MissingFieldsError
			require.ErrorAs(t, err, &mfe)
			assert.Equal(t, tt.wantMissing, mfe.Missing)
			assert.Equal(t, []string{"address", "count_places"}, mfe.Required)
			assert.Equal(t, "Missing required fields: address, count_places", mfe.Error())
		})
	}
}
