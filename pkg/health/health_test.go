package health

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckerRegistry_Check(t *testing.T) {
	tests := []struct {
		name   string
		errs   []error
		status Status
	}{
		{name: "all healthy", errs: []error{nil, nil}, status: StatusHealthy},
		{name: "one degraded", errs: []error{nil, Degraded(fmt.Errorf("slow"))}, status: StatusDegraded},
		{name: "unhealthy wins", errs: []error{Degraded(fmt.Errorf("slow")), fmt.Errorf("down")}, status: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			for i, err := range tt.errs {
				err := err
				r.Register(NewCheckFunc(fmt.Sprintf("c%d", i), func(context.Context) error { return err }))
			}

			h := r.Check(context.Background())
			assert.Equal(t, tt.status, h.Status)
			assert.Len(t, h.Checks, len(tt.errs))
		})
	}
}

func TestDegraded_Nil(t *testing.T) {
	assert.NoError(t, Degraded(nil))
}
