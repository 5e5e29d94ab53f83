package gojahttp

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// QueryItem is one decoded name/value pair from a URL query string. A nil
// Value means the pair carried no '=' at all, which is distinct from an
// empty value ("key=").
type QueryItem struct {
	Name  string
	Value *string
}

// URLParts holds the decomposed components of a URL, mirroring the mapping
// returned by the JS urlParts function. String fields are empty when the
// component is absent; Port is 0 when the URL names no explicit port;
// QueryItems is nil when the URL has no query at all (as opposed to an
// empty or anomalous one).
type URLParts struct {
	AbsoluteString           string
	AbsoluteURL              string
	BaseURL                  string // empty when the URL is already absolute
	FileSystemRepresentation string
	Fragment                 string
	Host                     string
	IsFileURL                bool
	LastPathComponent        string
	ParameterString          string
	Password                 string
	Path                     string
	PathComponents           []string
	PathExtension            string
	Port                     int
	Query                    string
	QueryItems               []QueryItem
	RelativePath             string
	RelativeString           string
	ResourceSpecifier        string
	Scheme                   string
	StandardizedURL          string
	User                     string
}

// ParseURLParts decomposes a URL string into its components.
func ParseURLParts(raw string) (*URLParts, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("gojahttp: invalid url: %w", err)
	}
	return URLPartsFromURL(u), nil
}

// URLPartsFromURL decomposes an already-parsed URL. This is the extension
// point for callers that hold a resolved *url.URL rather than a string.
func URLPartsFromURL(u *url.URL) *URLParts {
	absolute := u.String()

	p := &URLParts{
		AbsoluteString: absolute,
		AbsoluteURL:    absolute,
		Fragment:       u.Fragment,
		Host:           u.Hostname(),
		IsFileURL:      u.Scheme == "file",
		Query:          u.RawQuery,
		RelativeString: absolute,
		Scheme:         u.Scheme,
	}

	if ui := u.User; ui != nil {
		p.User = ui.Username()
		p.Password, _ = ui.Password()
	}

	if port := u.Port(); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			p.Port = n
		}
	}

	// The parameter string (";param" on the final segment) is not part of
	// the path proper.
	stripped, param := splitParameterString(u.Path)
	p.Path = stripped
	p.ParameterString = param
	p.FileSystemRepresentation = stripped
	p.RelativePath = stripped
	p.PathComponents = pathComponents(stripped)
	p.LastPathComponent = lastPathComponent(stripped)
	p.PathExtension = pathExtension(p.LastPathComponent)

	if u.RawQuery != "" || u.ForceQuery {
		p.QueryItems = parseQueryItems(u.RawQuery)
	}

	if u.IsAbs() {
		p.ResourceSpecifier = strings.TrimPrefix(absolute, u.Scheme+":")
	} else {
		p.ResourceSpecifier = absolute
	}
	p.StandardizedURL = standardizedURL(u)

	return p
}

// splitParameterString separates a trailing ";param" from the final path
// component. The split happens on the last ';' of the last segment only.
func splitParameterString(p string) (string, string) {
	i := strings.LastIndex(p, ";")
	if i < 0 || i < strings.LastIndex(p, "/") {
		return p, ""
	}
	return p[:i], p[i+1:]
}

// pathComponents splits an unescaped path into components, including a
// leading "/" for rooted paths and a trailing "/" marker for directory
// paths, matching the conventions of the original URL API.
func pathComponents(p string) []string {
	if p == "" {
		return nil
	}
	var out []string
	if strings.HasPrefix(p, "/") {
		out = append(out, "/")
	}
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		out = append(out, "/")
	}
	return out
}

func lastPathComponent(p string) string {
	if p == "" {
		return ""
	}
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func pathExtension(lastComponent string) string {
	if i := strings.LastIndex(lastComponent, "."); i > 0 && i < len(lastComponent)-1 {
		return lastComponent[i+1:]
	}
	return ""
}

// standardizedURL renders u with dot segments removed from its path, the
// rest untouched.
func standardizedURL(u *url.URL) string {
	if u.Path == "" {
		return u.String()
	}
	s := *u
	cleaned := path.Clean(u.Path)
	if cleaned == "." {
		cleaned = ""
	}
	if strings.HasSuffix(u.Path, "/") && !strings.HasSuffix(cleaned, "/") {
		cleaned += "/"
	}
	s.Path = cleaned
	s.RawPath = ""
	return s.String()
}

// parseQueryItems decomposes a raw query string into ordered name/value
// pairs. Pairs split on '&', then on the first '='; a pair without '='
// yields an absent (nil) value, while "key=" yields an empty one. Empty
// segments from leading, trailing, or doubled '&' yield an item with an
// empty name and absent value.
func parseQueryItems(raw string) []QueryItem {
	segments := strings.Split(raw, "&")
	items := make([]QueryItem, 0, len(segments))
	for _, seg := range segments {
		var item QueryItem
		if name, value, ok := strings.Cut(seg, "="); ok {
			v := queryUnescape(value)
			item.Name = queryUnescape(name)
			item.Value = &v
		} else {
			item.Name = queryUnescape(seg)
		}
		items = append(items, item)
	}
	return items
}

// queryUnescape percent-decodes a query component, treating '+' as an
// encoded space. Undecodable input is returned verbatim rather than
// dropped.
func queryUnescape(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return out
}
