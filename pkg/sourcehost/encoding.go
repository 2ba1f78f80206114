package sourcehost

import (
	"encoding/base64"
	"strings"
)

// encodeGitHubContent base64-encodes content for the Contents API's write
// payload.
func encodeGitHubContent(content []byte) string {
	return base64.StdEncoding.EncodeToString(content)
}

// decodeGitHubContent decodes the Contents API's base64 response body,
// which GitHub wraps with embedded newlines.
func decodeGitHubContent(encoded string) ([]byte, error) {
	clean := strings.ReplaceAll(encoded, "\n", "")
	return base64.StdEncoding.DecodeString(clean)
}
