// Package urlbuilder constructs request URLs from a path template, path
// variables and search parameters.
//
// Two path variable modes are supported. Named variables replace ":name"
// placeholders in the template:
//
//	u, err := urlbuilder.Build("search/:id/:name", urlbuilder.Options{
//		Base:          "https://example.com",
//		PathVariables: urlbuilder.Named{"id": 2, "name": "joe"},
//	})
//	// https://example.com/search/2/joe
//
// Positional variables are appended as trailing segments, skipping nil:
//
//	u, err := urlbuilder.Build("x", urlbuilder.Options{
//		Base:          "https://example.com",
//		PathVariables: urlbuilder.Positional{"one", 2, nil, "5"},
//	})
//	// https://example.com/x/one/2/5/
//
// Search parameters are merged into the template's own query with
// override-wins semantics, see Merge.
package urlbuilder

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var (
	// ErrInvalidTemplate indicates the template or base could not be parsed.
	ErrInvalidTemplate = errors.New("invalid url template")

	// ErrRelativeTemplate indicates a relative template was given without a base.
	ErrRelativeTemplate = errors.New("relative url template requires a base")
)

// PathVariables is implemented by Named and Positional.
type PathVariables interface {
	substitute(template string) string
	segments() []string
}

// Named maps placeholder names (without the leading colon) to values. Nil
// values, including nil pointers, leave their placeholder untouched.
type Named map[string]any

// Positional is an ordered list of values appended as path segments. Nil
// values, including nil pointers, are skipped.
type Positional []any

func (n Named) substitute(template string) string {
	names := make([]string, 0, len(n))
	for name := range n {
		names = append(names, name)
	}
	// ":id" must not eat the prefix of ":identifier"
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		if isNil(n[name]) {
			continue
		}
		template = strings.ReplaceAll(template, ":"+name, url.PathEscape(stringify(n[name])))
	}
	return template
}

func (Named) segments() []string { return nil }

func (Positional) substitute(template string) string { return template }

func (p Positional) segments() []string {
	out := make([]string, 0, len(p))
	for _, v := range p {
		if isNil(v) {
			continue
		}
		out = append(out, stringify(v))
	}
	return out
}

// Options configures Build.
type Options struct {
	// Base is the URL relative templates are resolved against.
	Base string

	// PathVariables are substituted into or appended to the path.
	PathVariables PathVariables

	// SearchParams are merged over the template's own query.
	SearchParams ParamSource
}

// Build resolves template against opts.Base and applies path variables and
// search parameters. Building the returned URL's string again with no
// variables or parameters yields the same string.
func Build(template string, opts Options) (*url.URL, error) {
	if opts.PathVariables != nil {
		template = opts.PathVariables.substitute(template)
	}

	ref, err := url.Parse(template)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	u := ref
	if opts.Base != "" {
		base, err := url.Parse(opts.Base)
		if err != nil {
			return nil, fmt.Errorf("%w: base: %v", ErrInvalidTemplate, err)
		}
		if !base.IsAbs() {
			return nil, fmt.Errorf("%w: base %q is not absolute", ErrInvalidTemplate, opts.Base)
		}
		u = base.ResolveReference(ref)
	} else if !ref.IsAbs() {
		return nil, fmt.Errorf("%w: %q", ErrRelativeTemplate, template)
	}

	if u.Host != "" && u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	if opts.PathVariables != nil {
		appendSegments(u, opts.PathVariables.segments())
	}

	if opts.SearchParams != nil {
		merged := Merge(Query(u.RawQuery), opts.SearchParams)
		u.RawQuery = merged.Encode()
		u.ForceQuery = false
	}

	return u, nil
}

// BuildString is Build followed by String.
func BuildString(template string, opts Options) (string, error) {
	u, err := Build(template, opts)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func appendSegments(u *url.URL, segs []string) {
	if len(segs) == 0 {
		return
	}
	p := u.EscapedPath()
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	for _, s := range segs {
		p += url.PathEscape(s) + "/"
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		u.Path = unescaped
		u.RawPath = p
	}
}
