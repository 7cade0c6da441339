//go:build sonic

package transport

import "github.com/bytedance/sonic"

// for imroc/req and error bodies
var jsonMarshal = sonic.Marshal
var jsonUnmarshal = sonic.Unmarshal
