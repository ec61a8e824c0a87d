package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Status
		wantErr bool
	}{
		{name: "pending", raw: "pending", want: StatusPending},
		{name: "in_progress", raw: "in_progress", want: StatusInProgress},
		{name: "completed", raw: "completed", want: StatusCompleted},
		{name: "unknown value", raw: "done", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "wrong case", raw: "Pending", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Priority
		wantErr bool
	}{
		{name: "low", raw: "low", want: PriorityLow},
		{name: "medium", raw: "medium", want: PriorityMedium},
		{name: "high", raw: "high", want: PriorityHigh},
		{name: "unknown value", raw: "urgent", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePriority(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.True(t, StatusCompleted.Valid())
	assert.False(t, Status("cancelled").Valid())
}
