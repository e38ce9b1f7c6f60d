package pinning

import (
	"fmt"
	"strings"
)

// Scheme prefixes content addresses stored on-chain.
const Scheme = "ipfs"

// URI renders a content address as ipfs://<cid>.
func URI(cid string) string {
	return fmt.Sprintf("%s://%s", Scheme, cid)
}

// CIDFromURI strips the ipfs:// prefix. Bare addresses are returned unchanged.
func CIDFromURI(uri string) string {
	return strings.TrimPrefix(uri, Scheme+"://")
}

// GatewayLink renders an HTTP link to cid through gatewayHost.
func GatewayLink(gatewayHost, cid string) string {
	host := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(gatewayHost, "https://"), "http://"), "/")
	return fmt.Sprintf("https://%s/%s/%s", host, Scheme, CIDFromURI(cid))
}
