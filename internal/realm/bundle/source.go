package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dropDatabas3/realmport/internal/domain/types"
	gocache "github.com/patrickmn/go-cache"
)

// FileSource es un archivo de bundles leído a lo sumo una vez.
type FileSource struct {
	path string

	once    sync.Once
	bundles []types.RealmBundle
	err     error
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: filepath.Clean(path)}
}

func (s *FileSource) Path() string { return s.path }

// Bundles abre y parsea el archivo en la primera llamada.
func (s *FileSource) Bundles() ([]types.RealmBundle, error) {
	s.once.Do(func() {
		f, err := os.Open(s.path)
		if err != nil {
			s.err = err
			return
		}
		defer f.Close()
		s.bundles, s.err = ParseAll(f)
	})
	return s.bundles, s.err
}

// Cache reutiliza el parseo de archivos entre requests (plan → apply). La
// clave incluye tamaño y mtime, así que un archivo modificado se relee.
type Cache struct {
	c *gocache.Cache
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{c: gocache.New(ttl, time.Minute)}
}

// Load retorna los bundles del archivo. Los bundles devueltos son compartidos:
// el llamador no debe mutarlos (el importer trabaja sobre copias).
func (c *Cache) Load(path string) ([]types.RealmBundle, error) {
	path = filepath.Clean(path)
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s|%d|%d", path, st.Size(), st.ModTime().UnixNano())
	if v, ok := c.c.Get(key); ok {
		return v.(*FileSource).Bundles()
	}
	src := NewFileSource(path)
	bundles, err := src.Bundles()
	if err != nil {
		return nil, err
	}
	c.c.SetDefault(key, src)
	return bundles, nil
}

// Flush descarta todo lo cacheado.
func (c *Cache) Flush() { c.c.Flush() }
