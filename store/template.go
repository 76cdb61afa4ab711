package store

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/signadot/pathmodel/ptree"
)

// IDPlaceholder is the system placeholder standing for an entity id.
const IDPlaceholder = "id"

var (
	placeholderName = regexp.MustCompile(`^[A-Za-z]+$`)
	placeholderRef  = regexp.MustCompile(`\$[A-Za-z]+`)
)

// Replacers holds the values of $name placeholders in path templates.
type Replacers struct {
	mu   sync.RWMutex
	vals map[string]string
}

// NewReplacers returns replacers holding vals.
func NewReplacers(vals map[string]string) (*Replacers, error) {
	r := &Replacers{vals: map[string]string{}}
	for name, v := range vals {
		if err := r.Set(name, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Set gives the placeholder $name the value v. Names are letters only
// and $id is reserved.
func (r *Replacers) Set(name, v string) error {
	if !placeholderName.MatchString(name) {
		return fmt.Errorf("%w: %q must contain only letters", ErrInvalidPlaceholder, name)
	}
	if name == IDPlaceholder {
		return fmt.Errorf("%w: $%s is a system placeholder", ErrInvalidPlaceholder, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vals[name] = v
	return nil
}

func (r *Replacers) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.vals, name)
}

func (r *Replacers) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vals[name]
	return v, ok
}

// Names returns the placeholder names in order.
func (r *Replacers) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]string, 0, len(r.vals))
	for k := range r.vals {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// Resolve fills the placeholders of tmpl. When id is not empty, a $id
// segment is replaced by it, or id is appended when tmpl has none. Any
// placeholder left undefined is an error.
func (r *Replacers) Resolve(tmpl, id string) (string, error) {
	var p string
	if r == nil {
		p = tmpl
	} else {
		r.mu.RLock()
		p = placeholderRef.ReplaceAllStringFunc(tmpl, func(m string) string {
			if v, ok := r.vals[m[1:]]; ok {
				return v
			}
			return m
		})
		r.mu.RUnlock()
	}
	p = ptree.Normalize(p)
	if id != "" {
		segs := ptree.Split(p)
		found := false
		for i, s := range segs {
			if s == "$"+IDPlaceholder {
				segs[i] = id
				found = true
			}
		}
		if found {
			p = strings.Join(segs, "/")
		} else {
			p = ptree.Join(p, id)
		}
	}
	if undef := placeholderRef.FindAllString(p, -1); len(undef) != 0 {
		return "", fmt.Errorf("%w: %s in %q", ErrUndefinedPlaceholder, strings.Join(undef, ", "), p)
	}
	return p, nil
}
