package digest

import "errors"

var errShortHex = errors.New("digest: hex string must be exactly 64 characters")
