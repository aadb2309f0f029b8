package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		want string
		typ  Type
	}{
		{want: "TreeResolved", typ: TreeResolved},
		{want: "PlanComplete", typ: PlanComplete},
		{want: "FileStarted", typ: FileStarted},
		{want: "FileCompleted", typ: FileCompleted},
		{want: "FileFailed", typ: FileFailed},
		{want: "FileRetry", typ: FileRetry},
		{want: "FileCached", typ: FileCached},
		{want: "FilePending", typ: FilePending},
		{want: "CacheCommitted", typ: CacheCommitted},
		{want: "CacheWarning", typ: CacheWarning},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestTypeStringUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", Type(999).String())
	assert.Equal(t, "Unknown", Type(0).String())
	assert.Equal(t, "Unknown", Type(-1).String())
}

func TestEventZeroValue(t *testing.T) {
	var e Event
	assert.Equal(t, Type(0), e.Type)
	assert.True(t, e.Timestamp.IsZero())
	assert.Empty(t, e.Path)
	assert.Zero(t, e.Size)
	assert.Zero(t, e.Total)
	assert.Zero(t, e.Pending)
	require.NoError(t, e.Error)
	assert.Zero(t, e.WorkerID)
}
