package models

import (
	"net/url"
	"strings"
)

const SurfaceScheme = "mobileapp"

const surfacePrefix = SurfaceScheme + "://"

// Surface names a location in the host application where content can be
// shown. It is a comparable value and is used directly as a map key.
type Surface struct {
	URI string
}

// NewSurface builds mobileapp://<appID>[/<path>]. An empty appID yields an
// invalid surface.
func NewSurface(appID, path string) Surface {
	appID = strings.Trim(strings.TrimSpace(appID), "/")
	if appID == "" {
		return Surface{}
	}
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return SurfaceFromURI(surfacePrefix + appID)
	}
	return SurfaceFromURI(surfacePrefix + appID + "/" + path)
}

// SurfaceFromURI wraps a URI read from wire or event data.
func SurfaceFromURI(uri string) Surface {
	return Surface{URI: normalizeSurfaceURI(uri)}
}

func normalizeSurfaceURI(uri string) string {
	uri = strings.TrimSpace(uri)
	for strings.HasSuffix(uri, "/") && !strings.HasSuffix(uri, "://") {
		uri = strings.TrimSuffix(uri, "/")
	}
	return uri
}

// Valid reports whether the URI carries the mobileapp scheme and a host.
func (s Surface) Valid() bool {
	if !strings.HasPrefix(s.URI, surfacePrefix) {
		return false
	}
	u, err := url.Parse(s.URI)
	if err != nil {
		return false
	}
	return u.Scheme == SurfaceScheme && u.Host != ""
}

func (s Surface) String() string {
	return s.URI
}

// SurfacesFromURIs converts URIs, dropping invalid ones and duplicates while
// keeping order.
func SurfacesFromURIs(uris []string) []Surface {
	out := make([]Surface, 0, len(uris))
	seen := make(map[Surface]struct{}, len(uris))
	for _, uri := range uris {
		s := SurfaceFromURI(uri)
		if !s.Valid() {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func SurfaceURIs(surfaces []Surface) []string {
	out := make([]string, 0, len(surfaces))
	for _, s := range surfaces {
		out = append(out, s.URI)
	}
	return out
}
