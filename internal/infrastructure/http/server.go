// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
	"github.com/0xcro3dile/coderag-go/internal/domain/usecases"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

// ImagePathPrefix is the URL prefix uploaded images are served under.
const ImagePathPrefix = "/static/images/"

// Answerer answers questions over the index or a single image.
type Answerer interface {
	Answer(ctx context.Context, question string, k int) (*entities.Answer, error)
	StreamAnswer(ctx context.Context, question string, k int) (<-chan ports.StreamToken, []entities.Source, error)
	AnswerFromImage(ctx context.Context, data []byte, question string) (*entities.ImageAnswer, error)
}

// Indexer starts background builds and reports their status.
type Indexer interface {
	Trigger(ctx context.Context) entities.TriggerResult
	Status() entities.BuildStatus
}

// Server is the HTTP server for the query, index and image API.
type Server struct {
	answerer  Answerer
	indexer   Indexer
	imageDir  string
	maxUpload int64
	addr      string
}

// NewServer creates a new HTTP server. Uploaded images are stored in imageDir.
func NewServer(answerer Answerer, indexer Indexer, addr, imageDir string, maxUploadMB int) *Server {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &Server{
		answerer:  answerer,
		indexer:   indexer,
		imageDir:  imageDir,
		maxUpload: int64(maxUploadMB) << 20,
		addr:      addr,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET "+ImagePathPrefix, http.StripPrefix(ImagePathPrefix, http.FileServer(http.Dir(s.imageDir))))

	mux.HandleFunc("POST /index", s.handleIndex)
	mux.HandleFunc("GET /index/status", s.handleIndexStatus)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /query/stream", s.handleQueryStream) // SSE streaming
	mux.HandleFunc("POST /process_image", s.handleProcessImage)
	mux.HandleFunc("POST /process_image_base64", s.handleProcessImageBase64)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return corsMiddleware(loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // Longer for streaming
	}

	logger.Info("coderag server starting on %s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleIndex starts a rebuild in the background.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	result := s.indexer.Trigger(r.Context())
	status := http.StatusAccepted
	if result == entities.TriggerAlreadyRunning {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"status": string(result)})
}

type indexStatusResponse struct {
	IsRunning bool                  `json:"is_running"`
	Status    entities.BuildState   `json:"status"`
	Message   string                `json:"message"`
	Error     string                `json:"error,omitempty"`
	StartTime *time.Time            `json:"start_time"`
	EndTime   *time.Time            `json:"end_time"`
	Duration  float64               `json:"duration"` // seconds
	Report    *entities.BuildReport `json:"report,omitempty"`
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	st := s.indexer.Status()
	resp := indexStatusResponse{
		IsRunning: st.IsRunning(),
		Status:    st.State,
		Message:   st.Message,
		Error:     st.Error,
		StartTime: timePtr(st.StartedAt),
		EndTime:   timePtr(st.FinishedAt),
		Duration:  st.Duration.Seconds(),
		Report:    st.Report,
	}
	writeJSON(w, http.StatusOK, resp)
}

type queryRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
}

type queryResponse struct {
	Answer  string            `json:"answer"`
	Sources []entities.Source `json:"sources"`
}

// handleQuery answers a question over the index.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeDetail(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.answerer.Answer(r.Context(), req.Question, req.K)
	if err != nil {
		logger.Error("query failed: %v", err)
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Answer: answer.Text, Sources: answer.Sources})
}

// handleQueryStream handles SSE streaming queries. Sources are sent first,
// then one event per token.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Query required", http.StatusBadRequest)
		return
	}
	k, _ := strconv.Atoi(r.URL.Query().Get("k"))

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	tokens, sources, err := s.answerer.StreamAnswer(r.Context(), query, k)
	if err != nil {
		sendSSE(w, flusher, map[string]any{"error": err.Error(), "done": true})
		return
	}
	sendSSE(w, flusher, map[string]any{"sources": sources, "done": false})

	for token := range tokens {
		if token.Error != nil {
			sendSSE(w, flusher, map[string]any{"error": token.Error.Error(), "done": true})
			return
		}
		sendSSE(w, flusher, map[string]any{"content": token.Content, "done": token.Done})
	}
}

type imageResponse struct {
	Filename      string `json:"filename"`
	ExtractedText string `json:"extracted_text"`
	ImagePath     string `json:"image_path"`
	Answer        string `json:"answer,omitempty"`
}

// handleProcessImage runs OCR on an uploaded file and optionally answers a
// question about it.
func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = uuid.NewString() + ".png"
	}
	s.processImage(r.Context(), w, data, data, name, r.FormValue("question"))
}

type imageBase64Request struct {
	ImageData string `json:"image_data"`
	Question  string `json:"question"`
}

// handleProcessImageBase64 is handleProcessImage for base64 payloads. The
// image is stored re-encoded as PNG under a generated name.
func (s *Server) handleProcessImageBase64(w http.ResponseWriter, r *http.Request) {
	var req imageBase64Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUpload)).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	data, err := base64.StdEncoding.DecodeString(stripDataURL(req.ImageData))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid base64 image data")
		return
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "unsupported image: "+err.Error())
		return
	}
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		writeDetail(w, http.StatusInternalServerError, "encoding image: "+err.Error())
		return
	}

	s.processImage(r.Context(), w, data, encoded.Bytes(), uuid.NewString()+".png", req.Question)
}

func (s *Server) processImage(ctx context.Context, w http.ResponseWriter, data, stored []byte, name, question string) {
	result, err := s.answerer.AnswerFromImage(ctx, data, question)
	if errors.Is(err, usecases.ErrNoImageReader) {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		logger.Error("image processing failed: %v", err)
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("image processing failed: %v", err))
		return
	}

	if err := s.saveImage(name, stored); err != nil {
		logger.Error("saving image %s: %v", name, err)
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("saving image: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, imageResponse{
		Filename:      name,
		ExtractedText: result.ExtractedText,
		ImagePath:     ImagePathPrefix + name,
		Answer:        result.Answer,
	})
}

func (s *Server) saveImage(name string, data []byte) error {
	if err := os.MkdirAll(s.imageDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.imageDir, name), data, 0o644)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data map[string]any) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// stripDataURL drops a "data:image/...;base64," prefix if present.
func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
