package api

import "context"

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct{}

// NewServerStarter creates a server starter that runs StartServer
func NewServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// StartServer serves the API until ctx is cancelled
func (s *DefaultServerStarter) StartServer(ctx context.Context, chunks IChunkStore, archive IChunkArchive, config ServerConfig) error {
	return StartServer(ctx, chunks, archive, config)
}
