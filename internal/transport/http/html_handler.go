package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ServeMainApp serves the single-page frontend from webDir. Paths that do
// not name a file fall back to index.html so client-side routes resolve.
func ServeMainApp(webDir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(webDir))
	return func(w http.ResponseWriter, r *http.Request) {
		indexPath := filepath.Join(webDir, "index.html")
		if _, err := os.Stat(indexPath); os.IsNotExist(err) {
			http.Error(w, "Frontend not installed", http.StatusNotFound)
			return
		}

		clean := filepath.Clean("/" + strings.TrimPrefix(r.URL.Path, "/"))
		if info, err := os.Stat(filepath.Join(webDir, clean)); err == nil && !info.IsDir() {
			setSecurityHeaders(w)
			files.ServeHTTP(w, r)
			return
		}

		serveHTML(w, r, indexPath)
	}
}

// serveHTML serves an HTML file with proper headers
func serveHTML(w http.ResponseWriter, r *http.Request, filePath string) {
	page, err := os.ReadFile(filePath)
	if err != nil {
		http.Error(w, "Error loading page", http.StatusInternalServerError)
		return
	}
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
}
