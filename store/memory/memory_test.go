package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timetrack/attendance"
	"github.com/warp/timetrack/generic"
	"github.com/warp/timetrack/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) attendance.Store { return New() })
}

func TestFailWith(t *testing.T) {
	s := New()
	s.FailWith(errors.New("disk on fire"))

	_, err := s.ListProfiles(context.Background(), attendance.ProfileFilter{})
	require.Error(t, err)
	assert.True(t, generic.IsRetryable(err))

	err = s.WithTx(context.Background(), func(attendance.Records) error { return nil })
	assert.True(t, generic.IsRetryable(err))

	s.FailWith(nil)
	_, err = s.ListProfiles(context.Background(), attendance.ProfileFilter{})
	assert.NoError(t, err)
}
