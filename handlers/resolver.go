package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

// The generation endpoint's response shape is not contractually fixed: it
// may answer with a header, a redirect to the image itself, a JSON wrapper
// of varying nesting, or plain text. resolveOutputLocation runs a fixed
// chain of attempts over the response and returns the first hit.

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Keys tried first, in order, at every level of a JSON body.
var preferredBodyKeys = []string{"imageUrl", "url", "outputUrl", "result", "data", "image"}

var outputHeaders = []string{"Location", "x-image-url", "x-output-url"}

func resolveOutputLocation(resp *http.Response, body []byte) (string, bool) {
	if loc, ok := locationFromHeaders(resp.Header); ok {
		return loc, true
	}
	if loc, ok := locationFromImageResponse(resp); ok {
		return loc, true
	}
	if loc, ok := locationFromJSONBody(body); ok {
		return loc, true
	}
	return locationFromText(string(body))
}

func locationFromHeaders(h http.Header) (string, bool) {
	for _, name := range outputHeaders {
		if v := h.Get(name); v != "" {
			return v, true
		}
	}
	return "", false
}

// locationFromImageResponse treats a reply that is itself an image as the
// output: its final, possibly redirected, address is the location.
func locationFromImageResponse(resp *http.Response) (string, bool) {
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", false
	}
	if resp.Request == nil || resp.Request.URL == nil {
		return "", false
	}
	return resp.Request.URL.String(), true
}

func locationFromJSONBody(body []byte) (string, bool) {
	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	return locationFromValue(payload)
}

func locationFromValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		if m := urlPattern.FindString(val); m != "" {
			return m, true
		}
		if val != "" {
			return val, true
		}
	case map[string]interface{}:
		for _, key := range preferredBodyKeys {
			if nested, ok := val[key]; ok {
				if loc, found := locationFromValue(nested); found {
					return loc, true
				}
			}
		}
		for key, nested := range val {
			if isPreferredKey(key) {
				continue
			}
			if loc, found := locationFromValue(nested); found {
				return loc, true
			}
		}
	case []interface{}:
		for _, nested := range val {
			if loc, found := locationFromValue(nested); found {
				return loc, true
			}
		}
	}
	return "", false
}

func isPreferredKey(key string) bool {
	for _, k := range preferredBodyKeys {
		if k == key {
			return true
		}
	}
	return false
}

func locationFromText(s string) (string, bool) {
	if m := urlPattern.FindString(s); m != "" {
		return m, true
	}
	return "", false
}
