package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectPolicySucceedsOnFirstTry(t *testing.T) {
	p := NewReconnectPolicy(WithMaxAttempts(3), WithInitialDelay(time.Millisecond))
	var states []ConnectionState
	err := p.Run(context.Background(), func(context.Context) error { return nil }, func(s ConnectionState) {
		states = append(states, s)
	})
	require.NoError(t, err)
	assert.Equal(t, []ConnectionState{ConnConnected}, states)
}

func TestReconnectPolicyRetriesThenSucceeds(t *testing.T) {
	p := NewReconnectPolicy(WithMaxAttempts(5), WithInitialDelay(time.Millisecond), WithJitter(false))
	attempts := 0
	err := p.Run(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestReconnectPolicyExhausted(t *testing.T) {
	p := NewReconnectPolicy(WithMaxAttempts(2), WithInitialDelay(time.Millisecond))
	err := p.Run(context.Background(), func(context.Context) error {
		return errors.New("down")
	}, nil)
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CodeReconnectExhausted, pe.Code)
}

func TestReconnectPolicyRespectsCancellation(t *testing.T) {
	p := NewReconnectPolicy(WithMaxAttempts(10), WithInitialDelay(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Run(ctx, func(context.Context) error { return errors.New("down") }, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
