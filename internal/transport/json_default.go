//go:build !sonic

package transport

import "github.com/goccy/go-json"

// for imroc/req and error bodies
var jsonMarshal = json.Marshal
var jsonUnmarshal = json.Unmarshal
