package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		region   string
		expected string
		wantErr  bool
	}{
		{name: "local kenyan mobile", raw: "0712345678", region: "KE", expected: "+254712345678"},
		{name: "already e164", raw: "+254712345678", region: "KE", expected: "+254712345678"},
		{name: "spaces and default region", raw: " 0712 345 678 ", region: "", expected: "+254712345678"},
		{name: "international with other region", raw: "+14155552671", region: "KE", expected: "+14155552671"},
		{name: "garbage", raw: "not-a-number", region: "KE", wantErr: true},
		{name: "too short", raw: "0712", region: "KE", wantErr: true},
		{name: "empty", raw: "", region: "KE", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.region)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
