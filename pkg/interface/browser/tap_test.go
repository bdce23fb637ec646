package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestForward(t *testing.T) {
	const api = "https://catalog.api.2gis.ru/3.0/items?q=cafe"
	tests := []struct {
		name string
		e    *proto.NetworkResponseReceived
		want bool
	}{
		{"xhr", &proto.NetworkResponseReceived{Type: proto.NetworkResourceTypeXHR, Response: &proto.NetworkResponse{URL: api}}, true},
		{"fetch", &proto.NetworkResponseReceived{Type: proto.NetworkResourceTypeFetch, Response: &proto.NetworkResponse{URL: api}}, true},
		{"script", &proto.NetworkResponseReceived{Type: proto.NetworkResourceTypeScript, Response: &proto.NetworkResponse{URL: api}}, false},
		{"no response", &proto.NetworkResponseReceived{Type: proto.NetworkResourceTypeXHR}, false},
		{"empty url", &proto.NetworkResponseReceived{Type: proto.NetworkResourceTypeXHR, Response: &proto.NetworkResponse{}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := forward(tt.e); got != tt.want {
				t.Errorf("forward() = %v, want %v", got, tt.want)
			}
		})
	}
}
