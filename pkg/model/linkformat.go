package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LinkFormat serializes the discoverable resources to CoRE Link Format
// (RFC 6690): comma-separated entries in registration order, attribute
// order fixed as <path>;rt="...";if="...";ct=<n>.
func (reg *Registry) LinkFormat() []byte {
	var sb strings.Builder
	for i, r := range reg.List() {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "<%s>;rt=%q;if=%q;ct=%d",
			r.Path(), r.ResourceType(), r.Interface(), r.ContentFormat())
	}
	return []byte(sb.String())
}

// ErrBadLinkFormat indicates a link-format document that cannot be
// parsed.
var ErrBadLinkFormat = errors.New("model: malformed link format")

// Link is one parsed entry of a CoRE Link Format document.
type Link struct {
	Path          string
	ResourceType  string
	Interface     string
	ContentFormat uint16
}

// ParseLinkFormat parses a CoRE Link Format document as produced by
// LinkFormat. Unknown attributes are ignored; a missing ct attribute
// leaves ContentFormat zero.
func ParseLinkFormat(data []byte) ([]Link, error) {
	doc := strings.TrimSpace(string(data))
	if doc == "" {
		return nil, nil
	}

	var links []Link
	for _, entry := range strings.Split(doc, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ";")
		target := parts[0]
		if len(target) < 3 || target[0] != '<' || target[len(target)-1] != '>' {
			return nil, fmt.Errorf("%w: %q", ErrBadLinkFormat, entry)
		}
		link := Link{Path: target[1 : len(target)-1]}

		for _, attr := range parts[1:] {
			name, value, found := strings.Cut(attr, "=")
			if !found {
				continue
			}
			value = strings.Trim(value, `"`)
			switch name {
			case "rt":
				link.ResourceType = value
			case "if":
				link.Interface = value
			case "ct":
				ct, err := strconv.ParseUint(value, 10, 16)
				if err != nil {
					return nil, fmt.Errorf("%w: ct=%q", ErrBadLinkFormat, value)
				}
				link.ContentFormat = uint16(ct)
			}
		}
		links = append(links, link)
	}
	return links, nil
}
