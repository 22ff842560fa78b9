package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/pngchunk/pkg/codec"
	"github.com/ssargent/pngchunk/pkg/storage"
	"github.com/ssargent/pngchunk/pkg/store"
)

// Server holds the API server state
type Server struct {
	store   IChunkStore
	archive IChunkArchive
	codec   *codec.RecordCodec
	config  ServerConfig
	metrics *Metrics
	logger  *slog.Logger
}

// NewServer creates a new API server. archive may be nil, in which case the
// archive routes answer 404.
func NewServer(store IChunkStore, archive IChunkArchive, config ServerConfig, metrics *Metrics) *Server {
	if config.Codec == nil {
		config.Codec = codec.NewRecordCodec()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Server{
		store:   store,
		archive: archive,
		codec:   config.Codec,
		config:  config,
		metrics: metrics,
		logger:  config.Logger,
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	APIResponse
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleListChunks godoc
//
//	@Summary		List chunks
//	@Description	Describe every chunk in the file in file order
//	@Tags			chunks
//	@Produce		json
//	@Success		200	{object}	APIResponse{data=[]store.ChunkInfo}
//	@Failure		500	{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/chunks [get]
func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.Describe()
	if err != nil {
		s.sendStoreError(w, "list", err)
		return
	}
	if infos == nil {
		infos = []store.ChunkInfo{}
	}
	sendSuccess(w, infos)
}

// handleGetChunk godoc
//
//	@Summary		Get a chunk
//	@Description	Return the first chunk with the given type
//	@Tags			chunks
//	@Produce		json
//	@Param			tag	path		string	true	"Chunk type"
//	@Success		200	{object}	APIResponse{data=ChunkResponse}
//	@Failure		400	{object}	APIResponse
//	@Failure		404	{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/chunks/{tag} [get]
func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	tag, ok := s.tagParam(w, r)
	if !ok {
		return
	}

	record, err := s.store.Find(tag)
	if err != nil {
		s.sendStoreError(w, "find", err)
		return
	}
	sendSuccess(w, newChunkResponse(record))
}

// handleAppendChunk godoc
//
//	@Summary		Append a chunk
//	@Description	Encode the request body as a chunk of the given type and append it to the file
//	@Tags			chunks
//	@Accept			octet-stream
//	@Produce		json
//	@Param			tag		path		string	true	"Chunk type"
//	@Param			body	body		[]byte	true	"Payload"
//	@Success		201		{object}	APIResponse{data=store.ChunkInfo}
//	@Failure		400		{object}	APIResponse
//	@Failure		413		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/chunks/{tag} [post]
func (s *Server) handleAppendChunk(w http.ResponseWriter, r *http.Request) {
	tag, ok := s.tagParam(w, r)
	if !ok {
		return
	}

	payload, ok := s.readBody(w, r, int64(s.codec.MaxPayloadSize()))
	if !ok {
		return
	}

	info, err := s.store.Append(tag, payload)
	s.metrics.RecordCodecOperation("encode", err)
	if err != nil {
		s.sendStoreError(w, "append", err)
		return
	}
	sendCreated(w, info)
}

// handleDeleteChunk godoc
//
//	@Summary		Remove a chunk
//	@Description	Remove the first chunk with the given type and return it
//	@Tags			chunks
//	@Produce		json
//	@Param			tag	path		string	true	"Chunk type"
//	@Success		200	{object}	APIResponse{data=ChunkResponse}
//	@Failure		400	{object}	APIResponse
//	@Failure		404	{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/chunks/{tag} [delete]
func (s *Server) handleDeleteChunk(w http.ResponseWriter, r *http.Request) {
	tag, ok := s.tagParam(w, r)
	if !ok {
		return
	}

	record, err := s.store.Remove(tag)
	if err != nil {
		s.sendStoreError(w, "remove", err)
		return
	}
	sendSuccess(w, newChunkResponse(record))
}

// handleGetTag godoc
//
//	@Summary		Describe a chunk type
//	@Description	Report the properties encoded in the case of each tag letter
//	@Tags			tags
//	@Produce		json
//	@Param			tag	path		string	true	"Chunk type"
//	@Success		200	{object}	APIResponse{data=TagResponse}
//	@Failure		400	{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tags/{tag} [get]
func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := s.tagParam(w, r)
	if !ok {
		return
	}
	sendSuccess(w, newTagResponse(tag))
}

// handleDecode godoc
//
//	@Summary		Decode a chunk
//	@Description	Parse and verify one serialized chunk
//	@Tags			chunks
//	@Accept			octet-stream
//	@Produce		json
//	@Param			body	body		[]byte	true	"Serialized chunk"
//	@Success		200		{object}	APIResponse{data=ChunkResponse}
//	@Failure		422		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/decode [post]
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.codec.MaxPayloadSize()) + codec.MinRecordSize
	data, ok := s.readBody(w, r, limit)
	if !ok {
		return
	}

	record, err := s.codec.Decode(data)
	s.metrics.RecordCodecOperation("decode", err)
	if err != nil {
		s.sendCodecError(w, err)
		return
	}
	sendSuccess(w, newChunkResponse(record))
}

// handleArchiveChunk godoc
//
//	@Summary		Archive a chunk
//	@Description	Encode the request body as a chunk of the given type and store it in the archive
//	@Tags			archive
//	@Accept			octet-stream
//	@Produce		json
//	@Param			tag		path		string	true	"Chunk type"
//	@Param			body	body		[]byte	true	"Payload"
//	@Success		201		{object}	APIResponse{data=ArchiveEntryResponse}
//	@Failure		400		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/archive/{tag} [post]
func (s *Server) handleArchiveChunk(w http.ResponseWriter, r *http.Request) {
	if !s.archiveEnabled(w) {
		return
	}
	tag, ok := s.tagParam(w, r)
	if !ok {
		return
	}
	payload, ok := s.readBody(w, r, int64(s.codec.MaxPayloadSize()))
	if !ok {
		return
	}

	record, err := s.codec.NewRecord(tag, payload)
	s.metrics.RecordCodecOperation("encode", err)
	if err != nil {
		s.sendCodecError(w, err)
		return
	}

	id, err := s.archive.Put(record)
	s.metrics.RecordArchiveWrite(err == nil)
	if err != nil {
		s.sendStoreError(w, "archive", err)
		return
	}
	sendCreated(w, ArchiveEntryResponse{ID: id.String(), Chunk: newChunkResponse(record)})
}

// handleListArchive godoc
//
//	@Summary		List archived chunks
//	@Tags			archive
//	@Produce		json
//	@Success		200	{object}	APIResponse{data=[]ArchiveEntryResponse}
//	@Security		ApiKeyAuth
//	@Router			/archive [get]
func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	if !s.archiveEnabled(w) {
		return
	}

	entries := []ArchiveEntryResponse{}
	err := s.archive.List(func(e storage.Entry) bool {
		entries = append(entries, ArchiveEntryResponse{ID: e.ID.String(), Chunk: newChunkResponse(e.Record)})
		return true
	})
	if err != nil {
		s.sendStoreError(w, "archive_list", err)
		return
	}
	sendSuccess(w, entries)
}

// handleGetArchived godoc
//
//	@Summary		Get an archived chunk
//	@Tags			archive
//	@Produce		json
//	@Param			id	path		string	true	"Archive ID"
//	@Success		200	{object}	APIResponse{data=ArchiveEntryResponse}
//	@Failure		400	{object}	APIResponse
//	@Failure		404	{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/archive/id/{id} [get]
func (s *Server) handleGetArchived(w http.ResponseWriter, r *http.Request) {
	if !s.archiveEnabled(w) {
		return
	}

	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Invalid archive ID", http.StatusBadRequest)
		return
	}

	record, err := s.archive.Get(id)
	if err != nil {
		s.sendStoreError(w, "archive_get", err)
		return
	}
	sendSuccess(w, ArchiveEntryResponse{ID: id.String(), Chunk: newChunkResponse(record)})
}

// handleStats godoc
//
//	@Summary		Chunk file statistics
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	APIResponse{data=store.FileStats}
//	@Security		ApiKeyAuth
//	@Router			/stats [get]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		s.sendStoreError(w, "stats", err)
		return
	}
	sendSuccess(w, stats)
}

func (s *Server) archiveEnabled(w http.ResponseWriter) bool {
	if s.archive == nil {
		sendError(w, "Archive is not configured", http.StatusNotFound)
		return false
	}
	return true
}

// tagParam parses the {tag} URL parameter, answering 400 if it is not a
// chunk type.
func (s *Server) tagParam(w http.ResponseWriter, r *http.Request) (codec.TypeTag, bool) {
	tag, err := codec.ParseTag(chi.URLParam(r, "tag"))
	s.metrics.RecordCodecOperation("parse_tag", err)
	if err != nil {
		s.sendCodecError(w, err)
		return codec.TypeTag{}, false
	}
	return tag, true
}

// readBody reads at most limit bytes of request body, answering 413 when
// the body is larger.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.RecordCodecOperation("read_body", codec.ErrPayloadTooLarge)
			sendErrorCode(w, fmt.Sprintf("Request body exceeds %d bytes", limit),
				codec.KindPayloadTooLarge.String(), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// sendCodecError answers a codec failure with its kind as the error code
func (s *Server) sendCodecError(w http.ResponseWriter, err error) {
	sendErrorCode(w, err.Error(), codecStatus(err), statusForError(err))
}

func (s *Server) sendStoreError(w http.ResponseWriter, operation string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("chunk operation failed", "operation", operation, "error", err)
	}
	if kind := codec.KindOf(err); kind != 0 {
		sendErrorCode(w, err.Error(), kind.String(), status)
		return
	}
	sendError(w, err.Error(), status)
}

// statusForError maps store, archive and codec errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrChunkNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrCorruption), errors.Is(err, store.ErrClosed):
		return http.StatusInternalServerError
	case errors.Is(err, codec.ErrInvalidTag):
		return http.StatusBadRequest
	case errors.Is(err, codec.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case codec.KindOf(err) != 0:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// startMetricsUpdater refreshes chunk file gauges until ctx is done
func (s *Server) startMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.updateFileStats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateFileStats()
		}
	}
}

func (s *Server) updateFileStats() {
	stats, err := s.store.Stats()
	if err != nil {
		s.logger.Warn("failed to read chunk file stats", "error", err)
		return
	}
	s.metrics.UpdateFileStats(stats.Chunks, stats.SizeBytes)
}
