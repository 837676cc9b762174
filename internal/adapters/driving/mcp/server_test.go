package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil lineage service returns error", func(t *testing.T) {
		ports := &Ports{}
		server, err := NewServer(ports)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingLineageService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		ports := &Ports{
			Lineage: &mockLineageService{},
		}
		server, err := NewServer(ports)
		require.NoError(t, err)
		assert.NotNil(t, server)
	})

	t.Run("ingest port is optional", func(t *testing.T) {
		ports := &Ports{
			Lineage: &mockLineageService{},
			Ingest:  &mockIngestor{},
		}
		server, err := NewServer(ports)
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("nil lineage service returns error", func(t *testing.T) {
		ports := &Ports{Ingest: &mockIngestor{}}
		err := ports.Validate()
		assert.ErrorIs(t, err, ErrMissingLineageService)
	})

	t.Run("lineage only is valid", func(t *testing.T) {
		ports := &Ports{
			Lineage: &mockLineageService{},
		}
		err := ports.Validate()
		assert.NoError(t, err)
	})
}
