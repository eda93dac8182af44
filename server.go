package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-giftcard-verifier/checks"
	"go-giftcard-verifier/images"
	"go-giftcard-verifier/mailer"
	"go-giftcard-verifier/models"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const ErrorInternal = "Internal server error."
const ERR_MARSHAL = "failed to marshal response message"
const ERR_MISSING_VERIFY_FIELDS = "Missing brand, code, or email."
const ERR_MISSING_SCAN_FIELDS = "Missing brand, email, or images."
const ERR_INVALID_IMAGE = "Invalid image data."
const ERR_CHECK_FAILED = "failed to run balance check"
const ERR_BODY_TOO_LARGE = "Request body too large."

// uploads carry two base64 stills
const maxBodyBytes = 20 << 20

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`
	StaticPath     string `json:"static_path,omitempty"`
}

type ServerState struct {
	mailer   mailer.Sender
	checker  *checks.Checker
	validate *validator.Validate
	now      func() time.Time
}

func NewServerState(sender mailer.Sender, checker *checks.Checker) *ServerState {
	return &ServerState{
		mailer:   sender,
		checker:  checker,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

type SpaHandler struct {
	staticPath string
	indexPath  string
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	if s.config.UseTls {
		slog.Info("Starting server with TLS", "host", s.config.Host, "port", s.config.Port, "cert", s.config.TlsCertPath, "key", s.config.TlsPrivKeyPath)
		return s.server.ListenAndServeTLS(s.config.TlsCertPath, s.config.TlsPrivKeyPath)
	} else {
		slog.Info("Starting server without TLS", "host", s.config.Host, "port", s.config.Port)
		return s.server.ListenAndServe()
	}
}

func (s *Server) Stop() error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Server shut down successfully")
	}
	return err
}

// ServeHTTP inspects the URL path to locate a file within the static dir
// on the SPA handler. If a file is found, it will be served. If not, the
// file located at the index path on the SPA handler will be served.
// https://github.com/gorilla/mux?tab=readme-ov-file#serving-single-page-applications
func (h SpaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Debug("SPA handler serving request", "path", r.URL.Path)
	// Join internally call path.Clean to prevent directory traversal
	path := filepath.Join(h.staticPath, r.URL.Path)
	fi, err := os.Stat(path)
	if os.IsNotExist(err) || (err == nil && fi.IsDir()) {
		slog.Debug("Serving index.html for path", "path", r.URL.Path)
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	if err != nil {
		slog.Error("Error stating file", "path", path, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Debug("Serving static file", "path", path)
	http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("Creating new server", "host", config.Host, "port", config.Port, "tls", config.UseTls)
	if state.mailer == nil {
		return nil, fmt.Errorf("no mailer configured")
	}
	if state.checker == nil {
		return nil, fmt.Errorf("no balance checker configured")
	}

	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Health check request received")
		if err := writeJSON(w, http.StatusOK, models.APIResponse{Ok: true}); err != nil {
			slog.Error("failed to write body to http response", "error", err)
		}
	})
	router.HandleFunc("/api/verify-request", func(w http.ResponseWriter, r *http.Request) {
		handleVerifyRequest(state, w, r)
	})
	router.HandleFunc("/api/scan-upload", func(w http.ResponseWriter, r *http.Request) {
		handleScanUpload(state, w, r)
	})
	router.HandleFunc("/api/check", func(w http.ResponseWriter, r *http.Request) {
		handleCheck(state, w, r)
	})

	slog.Debug("Registered all API routes")

	staticPath := config.StaticPath
	if staticPath == "" {
		staticPath = "./static"
	}
	spa := SpaHandler{staticPath: staticPath, indexPath: "index.html"}
	router.PathPrefix("/").Handler(spa)

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler:      router,
		Addr:         addr,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  30 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return &Server{
		server: srv,
		config: config,
	}, nil
}

func handleVerifyRequest(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	var req models.VerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Brand = strings.TrimSpace(req.Brand)
	req.Code = strings.TrimSpace(req.Code)
	req.Email = strings.TrimSpace(req.Email)

	if err := state.validate.Struct(req); err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_MISSING_VERIFY_FIELDS, "invalid verification request", err)
		return
	}

	slog.Info("Received verification request", "brand", req.Brand)
	msg := mailer.VerificationRequest(req.Brand, req.Code, req.Email, state.now())
	if err := state.mailer.Send(r.Context(), msg); err != nil {
		respondWithErr(w, http.StatusBadGateway, mailFailureMessage(err), "verify email failed", err)
		return
	}

	if err := writeJSON(w, http.StatusOK, models.APIResponse{Ok: true}); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

func handleScanUpload(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	var req models.ScanUploadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Brand = strings.TrimSpace(req.Brand)
	req.Email = strings.TrimSpace(req.Email)
	req.Mode = strings.TrimSpace(req.Mode)
	if req.Mode == "" {
		req.Mode = "scan"
	}

	if err := state.validate.Struct(req); err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_MISSING_SCAN_FIELDS, "invalid scan upload", err)
		return
	}

	front, err := images.ParseDataURL(req.Front)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_IMAGE, "failed to decode front image", err)
		return
	}
	back, err := images.ParseDataURL(req.Back)
	if err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_IMAGE, "failed to decode back image", err)
		return
	}

	slog.Info("Received scan upload", "brand", req.Brand, "mode", req.Mode, "front_size", len(front.Data), "back_size", len(back.Data))
	msg := mailer.ScanUpload(req.Mode, req.Brand, req.Email, front, back, state.now())
	if err := state.mailer.Send(r.Context(), msg); err != nil {
		respondWithErr(w, http.StatusBadGateway, mailFailureMessage(err), "scan upload email failed", err)
		return
	}

	if err := writeJSON(w, http.StatusOK, models.APIResponse{Ok: true}); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

func handleCheck(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	var req models.CheckRequest
	if !decodeBody(w, r, &req) {
		return
	}

	status, resp, err := state.checker.Check(r.Context(), checks.ClientIP(r), req)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_CHECK_FAILED, err)
		return
	}

	if err := writeJSON(w, status, resp); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

// mailFailureMessage is the text shown to the client when delivery fails.
func mailFailureMessage(err error) string {
	var serr *mailer.SendError
	if errors.As(err, &serr) {
		return serr.Error()
	}
	if errors.Is(err, mailer.ErrMissingPassword) {
		return "Missing GMAIL_APP_PASSWORD env var."
	}
	return "Email send failed."
}

func respondWithErr(w http.ResponseWriter, code int, message string, logMsg string, e error) {
	slog.Error(logMsg, "error", e, "status_code", code, "response_message", message)
	if err := writeJSON(w, code, models.APIResponse{Ok: false, Message: message}); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

// helpers ------------

// decodeBody reads a JSON body. An unreadable body leaves v at its zero
// value so the caller's required-field checks reject it. A body over
// maxBodyBytes is answered with 413 and reports false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondWithErr(w, http.StatusRequestEntityTooLarge, ERR_BODY_TOO_LARGE, "request body over limit", err)
			return false
		}
		slog.Debug("Ignoring undecodable request body", "path", r.URL.Path, "error", err)
	}
	return true
}

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}
}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		slog.Debug("Non-POST request rejected", "method", r.Method, "path", r.URL.Path)
		respondWithErr(w, http.StatusMethodNotAllowed, "method not allowed", "invalid method", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	slog.Debug("Writing JSON response", "status_code", status)
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal JSON payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		slog.Error("failed to write body to http response", "error", err)
	} else {
		slog.Debug("JSON response written successfully", "status_code", status, "payload_size", len(payload))
	}
	return nil
}
