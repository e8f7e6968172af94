package catalog

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind is the resource kind of a table-level address.
type Kind int

const (
	KindSchema Kind = iota + 1
	KindSample
	KindStatistics
)

// Kinds lists every table resource kind in listing order.
var Kinds = []Kind{KindSchema, KindSample, KindStatistics}

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindSample:
		return "sample"
	case KindStatistics:
		return "statistics"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns ErrUnknownKind for anything but the three recognized names.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "schema":
		return KindSchema, nil
	case "sample":
		return KindSample, nil
	case "statistics":
		return KindStatistics, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Address is a parsed resource address. It is either a SchemaListing or a
// TableResource.
type Address interface {
	isAddress()
	path() []string
}

// SchemaListing addresses the list of tables in one schema.
type SchemaListing struct {
	Schema string
}

// TableResource addresses one kind of metadata (or sample rows) of a table.
type TableResource struct {
	Schema string
	Table  string
	Kind   Kind
}

func (SchemaListing) isAddress() {}
func (TableResource) isAddress() {}

func (a SchemaListing) path() []string { return []string{"schema", a.Schema} }
func (a TableResource) path() []string { return []string{a.Schema, a.Table, a.Kind.String()} }

// Locator converts addresses to and from URIs of the form
// scheme://host/schema/<name> and scheme://host/<schema>/<table>/<kind>.
// The host is required but carries no meaning.
type Locator struct {
	Scheme string
	Host   string
}

// URI renders addr. Path segments are escaped so names containing '/' survive
// a round trip through Parse.
func (l Locator) URI(addr Address) string {
	segments := addr.path()
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return l.Scheme + "://" + l.Host + "/" + strings.Join(segments, "/")
}

// SchemaTemplate and TableTemplate are RFC 6570 templates matching the URIs
// produced by URI.
func (l Locator) SchemaTemplate() string {
	return l.Scheme + "://" + l.Host + "/schema/{schema}"
}

func (l Locator) TableTemplate() string {
	return l.Scheme + "://" + l.Host + "/{schema}/{table}/{kind}"
}

// Parse parses a resource URI. Failures are *AddressError values wrapping
// ErrInvalidAddress or ErrUnknownKind.
func (l Locator) Parse(uri string) (Address, error) {
	addr, err := l.parse(uri)
	if err != nil {
		return nil, &AddressError{URI: uri, Err: err}
	}
	return addr, nil
}

func (l Locator) parse(uri string) (Address, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if u.Scheme != l.Scheme {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidAddress, u.Scheme)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: credentials are not allowed", ErrInvalidAddress)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidAddress)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("%w: unexpected query or fragment", ErrInvalidAddress)
	}

	raw := strings.TrimPrefix(u.EscapedPath(), "/")
	if raw == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidAddress)
	}
	parts := strings.Split(raw, "/")
	for i, p := range parts {
		s, err := url.PathUnescape(p)
		if err != nil || s == "" {
			return nil, fmt.Errorf("%w: bad path segment %d", ErrInvalidAddress, i)
		}
		parts[i] = s
	}

	switch len(parts) {
	case 2:
		if parts[0] != "schema" {
			return nil, fmt.Errorf("%w: expected /schema/<name>", ErrInvalidAddress)
		}
		return SchemaListing{Schema: parts[1]}, nil
	case 3:
		kind, err := ParseKind(parts[2])
		if err != nil {
			return nil, err
		}
		return TableResource{Schema: parts[0], Table: parts[1], Kind: kind}, nil
	}
	return nil, fmt.Errorf("%w: path depth %d", ErrInvalidAddress, len(parts))
}
