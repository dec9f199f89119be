package classloader

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// classCacheSize bounds the LRU but is sized far above any realistic
// classpath, so in practice it behaves as an unbounded cache: eviction
// exists as a safety valve against pathological classpaths rather than
// a working-set limit, the same tradeoff the teacher's plain Go map
// cache made, just with a backstop.
const classCacheSize = 4096

// Loader loads and links classes across an ordered list of sources,
// delegating to earlier sources first the way the teacher's
// UserClassLoader consults its parent before its own classpath.
type Loader struct {
	sources []Source
	cache   *lru.Cache[string, *Class]
	linking map[string]bool
	log     *zap.Logger

	// arrayClasses caches synthetic array classes by descriptor name
	// ("[I", "[Ljava/lang/String;", ...), separate from cache since
	// they are never looked up by Find and never evicted (there are
	// only ever as many of these as distinct array types a program
	// actually touches).
	arrayClasses map[string]*Class
}

func New(sources []Source, log *zap.Logger) (*Loader, error) {
	cache, err := lru.New[string, *Class](classCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "classloader: creating class cache")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		sources:      sources,
		cache:        cache,
		linking:      make(map[string]bool),
		log:          log,
		arrayClasses: make(map[string]*Class),
	}, nil
}

// Load returns the linked runtime Class for name, loading and linking
// it on first use and caching the result thereafter.
func (l *Loader) Load(name string) (*Class, error) {
	if c, ok := l.cache.Get(name); ok {
		return c, nil
	}
	if l.linking[name] {
		return nil, errors.Errorf("classloader: cyclic class hierarchy involving %s", name)
	}
	l.linking[name] = true
	defer delete(l.linking, name)

	class, err := l.findAndLink(name)
	if err != nil {
		return nil, err
	}
	l.cache.Add(name, class)
	l.log.Debug("loaded class", zap.String("class", name))
	return class, nil
}

func (l *Loader) findAndLink(name string) (*Class, error) {
	for _, src := range l.sources {
		cf, err := src.Find(name)
		if err != nil {
			return nil, err
		}
		if cf == nil {
			continue
		}
		class, err := l.link(cf)
		if err != nil {
			return nil, errors.Wrapf(err, "classloader: linking %s", name)
		}
		return class, nil
	}
	return nil, errors.Errorf("classloader: class not found: %s", name)
}
