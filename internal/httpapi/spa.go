package httpapi

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"traceability-explorer/pkg/logger"
)

// SPA serves the built single-page app from Dir. Unknown paths fall back to
// index.html so client-side routes resolve.
type SPA struct {
	Dir string
}

// Layout reports which parts of the built app are present.
type Layout struct {
	Dir    string `json:"dir"`
	Dist   bool   `json:"dist"`
	Assets bool   `json:"assets"`
	Index  bool   `json:"index"`
}

func (s SPA) Layout() Layout {
	return Layout{
		Dir:    s.Dir,
		Dist:   isDir(s.Dir),
		Assets: isDir(filepath.Join(s.Dir, "assets")),
		Index:  isFile(filepath.Join(s.Dir, "index.html")),
	}
}

// Serve is the catch-all route. Unmatched /api paths get a JSON 404.
func (s SPA) Serve(c *gin.Context) {
	p := c.Request.URL.Path
	if p == "/api" || strings.HasPrefix(p, "/api/") {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	full, ok := s.resolve(p)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if full != "" && isFile(full) {
		c.File(full)
		return
	}
	index := filepath.Join(s.Dir, "index.html")
	if isFile(index) {
		c.File(index)
		return
	}
	logger.FromGin(c).Warn("frontend not built", "dir", s.Dir)
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
		"error": "Frontend not built. Run: npm run build and commit client/dist",
	})
}

// resolve maps a URL path to a file under Dir. It reports false for paths
// that try to climb out of Dir and returns "" for the root itself.
func (s SPA) resolve(urlPath string) (string, bool) {
	if strings.Contains(urlPath, "\x00") {
		return "", false
	}
	for _, seg := range strings.Split(urlPath, "/") {
		if seg == ".." {
			return "", false
		}
	}
	rel := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if s.Dir == "" || rel == "" {
		return "", true
	}
	root, err := filepath.Abs(s.Dir)
	if err != nil {
		return "", true
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
