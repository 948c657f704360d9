package web

import (
	"net/http"
	"os"
	"path/filepath"
)

const (
	indexFile = "index.html"
	assetsDir = "assets"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.siteDir, indexFile))
}

// assetsHandler serves SITE_DIR/assets under /assets. http.Dir keeps every
// lookup inside that directory.
func (s *Server) assetsHandler() http.Handler {
	root := fileOnlyFS{root: http.Dir(filepath.Join(s.siteDir, assetsDir))}
	return http.StripPrefix("/"+assetsDir, http.FileServer(root))
}

// fileOnlyFS hides directories so /assets/ never renders a listing.
type fileOnlyFS struct {
	root http.FileSystem
}

func (fs fileOnlyFS) Open(name string) (http.File, error) {
	f, err := fs.root.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}

	return f, nil
}
