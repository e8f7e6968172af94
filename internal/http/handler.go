package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/litesql/rsmcp/internal/catalog"
)

const transportName = "http"

// maxBodyBytes bounds a tool call body.
const maxBodyBytes = 1 << 20

// Service is the request surface shared with the MCP transport.
type Service interface {
	ListResources(ctx context.Context, transport string) ([]catalog.ResourceDescriptor, error)
	ReadResource(ctx context.Context, transport, uri string) (catalog.QueryResult, error)
	CallTool(ctx context.Context, transport, name string, args map[string]any) catalog.ToolResult
}

// Pinger reports whether the warehouse answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type resource struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
}

func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyzHandler answers 200 once a ping succeeds within timeout.
func ReadyzHandler(log *slog.Logger, p Pinger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			log.Warn("readyz: warehouse ping failed", "error", err)
			http.Error(w, fmt.Sprintf("warehouse unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}
}

func ResourcesHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		descs, err := svc.ListResources(r.Context(), transportName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]resource, 0, len(descs))
		for _, d := range descs {
			out = append(out, resource{URI: d.URI, Name: d.Name, MIMEType: d.MIMEType})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]resource{
			"resources": out,
		})
	}
}

func ResourceHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.Query().Get("uri")
		if uri == "" {
			http.Error(w, "uri is required", http.StatusBadRequest)
			return
		}
		rows, err := svc.ReadResource(r.Context(), transportName, uri)
		if err != nil {
			var addrErr *catalog.AddressError
			if errors.As(err, &addrErr) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", catalog.MediaTypeJSON)
		json.NewEncoder(w).Encode(rows)
	}
}

// ToolHandler calls the tool named by the path. The body is a JSON object of
// arguments; an empty body means no arguments.
func ToolHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var args map[string]any
		if body = bytes.TrimSpace(body); len(body) > 0 {
			if err := json.Unmarshal(body, &args); err != nil {
				http.Error(w, "arguments must be a JSON object", http.StatusBadRequest)
				return
			}
		}
		res := svc.CallTool(r.Context(), transportName, r.PathValue("name"), args)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

// Mount registers the JSON resource and tool routes on mux.
func Mount(mux *http.ServeMux, svc Service) {
	mux.HandleFunc("GET /resources", ResourcesHandler(svc))
	mux.HandleFunc("GET /resource", ResourceHandler(svc))
	mux.HandleFunc("POST /tools/{name}", ToolHandler(svc))
}
