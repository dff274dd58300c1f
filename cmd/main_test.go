package main

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testengine/registry"
	"github.com/ethereum-optimism/infra/op-testengine/runner"
	"github.com/ethereum-optimism/infra/op-testengine/selector"
	"github.com/ethereum-optimism/infra/op-testengine/types"
)

func TestRegistrationsPass(t *testing.T) {
	logger := log.NewLogger(log.DiscardHandler())
	session, err := registry.NewRegistry(logger).Register(registrations()...).Build(types.Configuration{})
	require.NoError(t, err)

	scheduler := runner.NewScheduler(runner.Config{Log: logger, RunID: "self-check"})
	result, err := scheduler.Run(context.Background(), session, nil, selector.MustNew(nil, nil))
	require.NoError(t, err)

	assert.Equal(t, types.TestStatusPass, result.Status, result.String())
	assert.Equal(t, 12, result.Stats.Total)
	assert.Equal(t, 12, result.Stats.Passed)

	rec, ok := result.Lookup("concurrency.repeated")
	require.True(t, ok)
	assert.Len(t, rec.Invocations(), 3)
}

func TestRegistrationsFreshHandles(t *testing.T) {
	first, second := registrations(), registrations()
	require.Len(t, second, len(first))
	for i := range first {
		assert.NotSame(t, first[i], second[i])
		assert.Equal(t, first[i].Name(), second[i].Name())
	}
}
