package codec

import "sync"

// Registry manages the available codecs
type Registry struct {
	mu     sync.RWMutex
	codecs map[Format]Codec
}

var defaultRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[Format]Codec)}
}

// Register registers a codec with the default registry. It is meant to be
// called from the init function of a codec package only; the default registry
// is read-only once initialization is done. Use NewRegistry for a private set.
func Register(c Codec) {
	defaultRegistry.Register(c)
}

// Get retrieves a codec by format
func Get(f Format) (Codec, error) {
	return defaultRegistry.Get(f)
}

// Lookup retrieves a codec by mime type name
func Lookup(name string) (Codec, error) {
	return defaultRegistry.Get(ParseFormat(name))
}

// List returns all registered codecs
func List() []Codec {
	return defaultRegistry.List()
}

// Register registers a codec under its format, replacing any previous one
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Format()] = c
}

// Get retrieves a codec by format
func (r *Registry) Get(f Format) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.codecs[f]
	if !ok {
		return nil, ErrCodecNotFound
	}
	return c, nil
}

// List returns the registered codecs in format order
func (r *Registry) List() []Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codecs := make([]Codec, 0, len(r.codecs))
	for f := Any; f < UnknownFormat; f++ {
		if c, ok := r.codecs[f]; ok {
			codecs = append(codecs, c)
		}
	}
	return codecs
}
