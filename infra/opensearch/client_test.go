package opensearch

import "testing"

func TestIsEnabled(t *testing.T) {
	var nilClient *Client
	if nilClient.IsEnabled() {
		t.Error("nil client must report disabled")
	}

	if (&Client{}).IsEnabled() {
		t.Error("client without a connection must report disabled")
	}
}
