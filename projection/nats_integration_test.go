//go:build integration

package projection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semquery/natsclient"
)

func TestIntegration_NATSSubstrateProjectsAcrossMembers(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := DefaultNATSConfig()
	cfg.Heartbeat = 500 * time.Millisecond

	workerCtx, stopWorker := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() {
		served <- Serve(workerCtx, tc.Client, cfg, remoteWorker("member-1"), 2, nil)
	}()

	substrate, err := NewNATSSubstrate(ctx, tc.Client, cfg, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return substrate.Members(ctx) == 1 }, 10*time.Second, 100*time.Millisecond)

	pcfg := DefaultConfig()
	pcfg.Mode = Distributed
	pcfg.PacketSize = 10
	pcfg.RemoteBias = 100
	pcfg.PacketTimeout = 10 * time.Second
	provider, err := NewProvider(pcfg, substrate)
	require.NoError(t, err)

	var c collector
	require.NoError(t, provider.Project(ctx, Job{QueryID: "q1", Items: items(25), Project: double}, c.emit))
	assert.Len(t, c.results, 25)
	for _, r := range c.results {
		assert.Equal(t, r.Source.Value.(float64)*2, r.Value.Value)
	}

	stopWorker()
	require.NoError(t, <-served)
}
