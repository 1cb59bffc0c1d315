package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRAGMCPServerRegistersTools(t *testing.T) {
	s := NewRAGMCPServer(ServerConfig{}, Dependencies{})
	reply := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))

	bs, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.Contains(t, string(bs), `"rag_ask"`)
	assert.Contains(t, string(bs), `"rag_ingest_text"`)
}

func TestServeRejectsUnknownTransport(t *testing.T) {
	err := Serve(context.Background(), NewRAGMCPServer(ServerConfig{}, Dependencies{}), "grpc", ":0")
	assert.Error(t, err)
}
