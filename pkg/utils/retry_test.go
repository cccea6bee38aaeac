package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robalyx/sentinel/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryOptions() utils.RetryOptions {
	return utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxRetries:      3,
	}
}

func TestWithRetryEventualSuccess(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := utils.WithRetry(t.Context(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastRetryOptions())

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryExhaustsRetries(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("permanent outage")

	attempts := 0
	err := utils.WithRetry(t.Context(), func() error {
		attempts++
		return wantErr
	}, fastRetryOptions())

	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 4, attempts) // initial call plus three retries
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := utils.WithRetry(ctx, func() error {
		return errors.New("never succeeds")
	}, fastRetryOptions())

	require.Error(t, err)
}
