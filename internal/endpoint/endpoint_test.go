package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNField(t *testing.T) {
	ep := Endpoint{DSN: "host=127.0.0.1 dbname=pgedge port=5431 user=pgedge password=pgedge"}

	assert.Equal(t, "127.0.0.1", ep.DSNField("host"))
	assert.Equal(t, "5431", ep.DSNField("port"))
	assert.Equal(t, "", ep.DSNField("sslmode"))
	assert.Equal(t, "pgedge", ep.Database())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []Endpoint
		wantErr   string
	}{
		{
			name:      "valid pair",
			endpoints: []Endpoint{{Name: "n1", DSN: "dbname=a"}, {Name: "n2", DSN: "dbname=a"}},
		},
		{
			name:    "empty set",
			wantErr: "no endpoints",
		},
		{
			name:      "empty name",
			endpoints: []Endpoint{{Name: "", DSN: "dbname=a"}},
			wantErr:   "empty name",
		},
		{
			name:      "duplicate name",
			endpoints: []Endpoint{{Name: "n1"}, {Name: "n1"}},
			wantErr:   `duplicate endpoint name "n1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.endpoints)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
